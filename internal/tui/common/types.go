package common

import "shiwake/pkg/types"

// Phase is where the viewed run is in its lifecycle.
type Phase int

const (
	Running Phase = iota
	Cancelling
	Finished
)

// ModelReader defines the interface that views use to read model state
type ModelReader interface {
	RunID() string
	DestinationRoot() string
	Phase() Phase
	Progress() types.Progress
	Recent() []types.FileResult
	Counts() (succeeded, failed int)
	ProgressBar() string
	Spinner() string
	HelpView() string
}
