package organize

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"shiwake/pkg/types"
)

// State is the lifecycle of an Orchestrator.
type State int

const (
	Idle State = iota
	Running
	Cancelling
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelling:
		return "cancelling"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Observer receives every progress event of a run, synchronously on the
// run's worker goroutine. It must not block.
type Observer func(types.Progress)

// RunState is the mutable progress of one run. Only the run's worker
// mutates it; readers take snapshots.
type RunState struct {
	runID string
	total int

	mu        sync.Mutex
	processed int
	current   *types.FileResult
	finished  bool

	cancelled atomic.Bool
}

func newRunState(runID string, total int) *RunState {
	return &RunState{runID: runID, total: total}
}

// Snapshot returns a copy of the current progress.
func (s *RunState) Snapshot() types.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *RunState) snapshotLocked() types.Progress {
	p := types.Progress{
		RunID:          s.runID,
		TotalFiles:     s.total,
		ProcessedFiles: s.processed,
		Finished:       s.finished,
		Cancelled:      s.cancelled.Load(),
	}
	if s.current != nil && !s.finished {
		r := *s.current
		p.CurrentResult = &r
	}
	return p
}

// Cancel requests cancellation. Safe to call any number of times from any
// goroutine.
func (s *RunState) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (s *RunState) Cancelled() bool {
	return s.cancelled.Load()
}

func (s *RunState) record(r types.FileResult) types.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed < s.total {
		s.processed++
	}
	s.current = &r
	return s.snapshotLocked()
}

func (s *RunState) finish() types.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	return s.snapshotLocked()
}

// Run is a handle on one batch.
type Run struct {
	id       string
	root     string
	dryRun   bool
	started  time.Time
	state    *RunState
	events   chan types.Progress
	done     chan struct{}
	cancelFn context.CancelFunc

	mu      sync.Mutex
	results []types.FileResult
	summary types.RunSummary
}

func newRun(id, root string, total int, dryRun bool, cancel context.CancelFunc) *Run {
	return &Run{
		id:       id,
		root:     root,
		dryRun:   dryRun,
		started:  time.Now(),
		state:    newRunState(id, total),
		events:   make(chan types.Progress, total+2),
		done:     make(chan struct{}),
		cancelFn: cancel,
		results:  make([]types.FileResult, 0, total),
	}
}

// ID returns the run id.
func (r *Run) ID() string { return r.id }

// DestinationRoot returns the absolute destination of the run.
func (r *Run) DestinationRoot() string { return r.root }

// Total returns the number of files the run will process.
func (r *Run) Total() int { return r.state.total }

// Events streams progress in order: one initial event, one per processed
// file and exactly one finished event, after which the channel is closed.
// The buffer holds every event, so a slow reader never stalls the run.
func (r *Run) Events() <-chan types.Progress { return r.events }

// Done is closed once the run is finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel asks the run to stop before its next file.
func (r *Run) Cancel() {
	r.state.Cancel()
	if r.cancelFn != nil {
		r.cancelFn()
	}
}

// Progress returns the latest progress snapshot.
func (r *Run) Progress() types.Progress { return r.state.Snapshot() }

// Results returns a copy of the outcomes recorded so far.
func (r *Run) Results() []types.FileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.FileResult, len(r.results))
	copy(out, r.results)
	return out
}

// Wait blocks until the run finishes or ctx is done and returns the summary.
func (r *Run) Wait(ctx context.Context) (types.RunSummary, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.summary, nil
	case <-ctx.Done():
		return types.RunSummary{}, ctx.Err()
	}
}

func (r *Run) addResult(res types.FileResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *Run) buildSummary(finished time.Time) types.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := types.RunSummary{
		RunID:           r.id,
		DestinationRoot: r.root,
		StartedAt:       r.started,
		FinishedAt:      finished,
		TotalFiles:      r.state.total,
		ProcessedFiles:  len(r.results),
		Cancelled:       r.state.Cancelled(),
		DryRun:          r.dryRun,
		Results:         append([]types.FileResult(nil), r.results...),
	}
	for _, res := range r.results {
		if res.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	r.summary = s
	return s
}
