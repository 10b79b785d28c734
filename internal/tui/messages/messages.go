package messages

import "shiwake/pkg/types"

// ProgressMsg carries one event from the run's progress stream.
type ProgressMsg struct {
	Progress types.Progress
}

// StreamClosedMsg is sent once the progress stream is closed.
type StreamClosedMsg struct{}
