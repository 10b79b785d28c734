package organize

import "context"

// BatchRunner defines the operations callers use to drive batches.
// This allows for dependency injection in tests and other parts of the application
type BatchRunner interface {
	// StartBatch validates the request and starts it in the background
	StartBatch(ctx context.Context, req Request) (*Run, error)

	// CancelBatch asks the active batch to stop before its next file
	CancelBatch()

	// State reports the lifecycle state of the runner
	State() State
}

// Ensure Orchestrator implements the BatchRunner interface
var _ BatchRunner = (*Orchestrator)(nil)

// Ensure Executor implements the Transferer interface
var _ Transferer = (*Executor)(nil)
