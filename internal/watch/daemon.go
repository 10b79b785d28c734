package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"shiwake/internal/errors"
	"shiwake/internal/log"
	"shiwake/internal/organize"
	"shiwake/pkg/types"

	"github.com/gobwas/glob"
)

// DefaultDebounce is how long a file must stay quiet before it is organized.
const DefaultDebounce = 1500 * time.Millisecond

// Options describes what the daemon watches and where files go.
type Options struct {
	Input           string
	DestinationRoot string
	Ruleset         types.Ruleset
	Classification  organize.Classification
	DryRun          bool
	Debounce        time.Duration
	Ignore          []glob.Glob
}

// DaemonStatus represents the current status of the daemon
type DaemonStatus struct {
	Running         bool      // Whether the daemon is currently active
	Input           string    // Folder being watched
	DestinationRoot string    // Where files are organized to
	Pending         int       // Files waiting for their debounce to expire
	FilesProcessed  int       // Files organized successfully so far
	LastActivity    time.Time // Time of last file activity
	LastRunID       string    // Most recent batch
}

// Daemon watches an input folder and hands files to a BatchRunner once the
// folder has been quiet for the debounce interval. Files that arrive while a
// batch is running wait for the next one.
type Daemon struct {
	opts    Options
	runner  organize.BatchRunner
	watcher *Watcher

	mutex        sync.RWMutex
	pending      map[string]time.Time
	processed    int
	lastActivity time.Time
	lastRunID    string
	callback     func(types.FileResult)
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewDaemon creates a daemon for opts that submits batches to runner.
func NewDaemon(opts Options, runner organize.BatchRunner) (*Daemon, error) {
	if opts.Input == "" {
		return nil, errors.NewConfigError("input folder is not set", "input_folder", errors.ConfigNotSet, nil)
	}
	if opts.DestinationRoot == "" {
		return nil, errors.NewConfigError("output folder is not set", "output_folders", errors.ConfigNotSet, nil)
	}
	if runner == nil {
		return nil, fmt.Errorf("daemon requires a batch runner")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	input, err := filepath.Abs(opts.Input)
	if err != nil {
		return nil, errors.NewFileError("cannot resolve input folder", opts.Input, errors.InvalidPath, err)
	}
	opts.Input = input

	return &Daemon{
		opts:    opts,
		runner:  runner,
		pending: make(map[string]time.Time),
	}, nil
}

// SetCallback sets a function to be called for every file outcome
func (d *Daemon) SetCallback(cb func(types.FileResult)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = cb
}

// Enqueue marks paths as seen now, as if the watcher had reported them.
func (d *Daemon) Enqueue(paths ...string) {
	now := time.Now()
	for _, p := range paths {
		d.mark(p, now)
	}
}

// Start begins watching. It returns once the watcher is running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	watcher, err := New(d.opts.Ignore...)
	if err != nil {
		return err
	}
	if err := watcher.AddDirectory(d.opts.Input); err != nil {
		watcher.Close()
		return fmt.Errorf("error adding watch directory %s: %w", d.opts.Input, err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("error starting watcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.watcher = watcher
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.loop(runCtx, watcher.Events(), d.done)
	log.LogWithFields(log.F("input", d.opts.Input), log.F("dest", d.opts.DestinationRoot)).Info("Watch daemon started")
	return nil
}

// Stop halts the daemon. An active batch is cancelled and awaited.
func (d *Daemon) Stop() {
	d.mutex.Lock()
	if !d.running {
		d.mutex.Unlock()
		return
	}
	d.running = false
	cancel, done, watcher := d.cancel, d.done, d.watcher
	d.mutex.Unlock()

	cancel()
	<-done
	watcher.Stop()
	log.Info("Watch daemon stopped")
}

// Status returns the current status of the daemon
func (d *Daemon) Status() DaemonStatus {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return DaemonStatus{
		Running:         d.running,
		Input:           d.opts.Input,
		DestinationRoot: d.opts.DestinationRoot,
		Pending:         len(d.pending),
		FilesProcessed:  d.processed,
		LastActivity:    d.lastActivity,
		LastRunID:       d.lastRunID,
	}
}

func (d *Daemon) mark(path string, at time.Time) {
	d.mutex.Lock()
	d.pending[path] = at
	if at.After(d.lastActivity) {
		d.lastActivity = at
	}
	d.mutex.Unlock()
}

func (d *Daemon) loop(ctx context.Context, events <-chan FileEvent, done chan<- struct{}) {
	defer close(done)

	interval := d.opts.Debounce / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var active *organize.Run
	for {
		var activeDone <-chan struct{}
		if active != nil {
			activeDone = active.Done()
		}

		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.mark(ev.Path, ev.Timestamp)

		case <-ticker.C:
			if active == nil {
				active = d.flush(ctx)
			}

		case <-activeDone:
			d.collect(active)
			active = nil

		case <-ctx.Done():
			if active != nil {
				active.Cancel()
				<-active.Done()
				d.collect(active)
			}
			return
		}
	}
}

// flush submits every pending file once the folder has been quiet for the
// debounce interval. It returns the started run, or nil.
func (d *Daemon) flush(ctx context.Context) *organize.Run {
	cutoff := time.Now().Add(-d.opts.Debounce)

	d.mutex.Lock()
	var ready []string
	quiet := true
	for _, seen := range d.pending {
		if !seen.Before(cutoff) {
			quiet = false
			break
		}
	}
	if quiet {
		for path := range d.pending {
			ready = append(ready, path)
		}
		d.pending = make(map[string]time.Time)
	}
	d.mutex.Unlock()

	files := ready[:0]
	for _, p := range ready {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return nil
	}
	sort.Strings(files)

	run, err := d.runner.StartBatch(ctx, organize.Request{
		Files:           files,
		DestinationRoot: d.opts.DestinationRoot,
		Ruleset:         d.opts.Ruleset,
		Classification:  d.opts.Classification,
		DryRun:          d.opts.DryRun,
	})
	if err != nil {
		if errors.IsBatchInProgress(err) {
			d.Enqueue(files...)
			return nil
		}
		log.LogWithError(err).Error("Watch batch rejected")
		return nil
	}

	d.mutex.Lock()
	d.lastRunID = run.ID()
	d.mutex.Unlock()
	log.LogWithFields(log.F("run_id", run.ID()), log.F("files", len(files))).Info("Watch batch started")
	return run
}

func (d *Daemon) collect(run *organize.Run) {
	results := run.Results()

	d.mutex.Lock()
	for _, r := range results {
		if r.Success {
			d.processed++
		}
	}
	cb := d.callback
	d.mutex.Unlock()

	if cb != nil {
		for _, r := range results {
			cb(r)
		}
	}
}
