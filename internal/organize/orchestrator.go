package organize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shiwake/internal/errors"
	"shiwake/internal/log"
	"shiwake/pkg/types"

	"github.com/google/uuid"
)

// AccessChecker answers whether the process may read and modify path.
type AccessChecker interface {
	HasAccess(path string) bool
}

// Recorder persists the summary of every finished run.
type Recorder interface {
	RecordRun(ctx context.Context, summary types.RunSummary) error
}

// Request describes one batch.
type Request struct {
	Files           []string
	DestinationRoot string
	Ruleset         types.Ruleset
	Classification  Classification
	DryRun          bool
	Timeout         time.Duration // Zero means no limit
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransferer replaces the default Executor.
func WithTransferer(t Transferer) Option {
	return func(o *Orchestrator) { o.transfer = t }
}

// WithAccessChecker makes every file pass an access check before it moves.
func WithAccessChecker(c AccessChecker) Option {
	return func(o *Orchestrator) { o.access = c }
}

// WithRecorder records each finished run.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithObserver registers a callback for every progress event of every run.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithLockDir sets where destination lock files are kept.
func WithLockDir(dir string) Option {
	return func(o *Orchestrator) { o.lockDir = dir }
}

// Orchestrator runs at most one batch at a time.
type Orchestrator struct {
	transfer  Transferer
	access    AccessChecker
	recorder  Recorder
	observers []Observer
	log       *log.Logger
	lockDir   string
	newID     func() string

	mu      sync.Mutex
	state   State
	current *Run
}

// NewOrchestrator returns an idle orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:     log.Default(),
		lockDir: defaultLockDir(),
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.transfer == nil {
		o.transfer = NewExecutor(WithExecutorLogger(o.log))
	}
	return o
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Running && o.current != nil && o.current.state.Cancelled() {
		return Cancelling
	}
	return o.state
}

// Current returns the active or most recent run, or nil.
func (o *Orchestrator) Current() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// CancelBatch asks the active run to stop. It is a no-op when idle.
func (o *Orchestrator) CancelBatch() {
	o.mu.Lock()
	run := o.current
	active := o.state == Running
	o.mu.Unlock()
	if active && run != nil {
		run.Cancel()
	}
}

type batch struct {
	files   []string // as given
	sources []string // absolute
	root    string
	rules   types.Ruleset
	class   Classification
	dryRun  bool
	create  bool // root is missing and must be made once locked
}

// StartBatch validates req and starts processing it in the background. It
// returns a ValidationError or ErrBatchInProgress without touching any file.
func (o *Orchestrator) StartBatch(ctx context.Context, req Request) (*Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == Running {
		return nil, errors.ErrBatchInProgress
	}

	b, err := o.prepare(req)
	if err != nil {
		return nil, err
	}

	lock, err := acquireDestinationLock(o.lockDir, b.root)
	switch {
	case errors.Is(err, errDestinationBusy):
		return nil, errors.NewValidationError("destination_root", "destination is locked", err)
	case err != nil:
		return nil, errors.NewValidationError("destination_root", "cannot lock destination", err)
	}

	if b.create {
		if err := os.MkdirAll(b.root, 0755); err != nil {
			if relErr := lock.release(); relErr != nil {
				o.log.WithError(relErr).Warn("failed to release destination lock")
			}
			return nil, errors.NewValidationError("destination_root", "cannot create "+b.root, err)
		}
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	run := newRun(o.newID(), b.root, len(b.sources), b.dryRun, cancel)
	o.current = run
	o.state = Running

	o.log.With(
		log.F("run_id", run.id),
		log.F("dest", b.root),
		log.F("files", len(b.sources)),
		log.F("dry_run", b.dryRun),
	).Info("batch started")

	go o.work(runCtx, run, b, lock)
	return run, nil
}

func (o *Orchestrator) prepare(req Request) (*batch, error) {
	if len(req.Files) == 0 {
		return nil, errors.NewValidationError("files", "no files to organize", nil)
	}
	if strings.TrimSpace(req.DestinationRoot) == "" {
		return nil, errors.NewValidationError("destination_root", "destination root is required", nil)
	}

	root, err := filepath.Abs(req.DestinationRoot)
	if err != nil {
		return nil, errors.NewValidationError("destination_root", "cannot resolve path", err)
	}
	info, err := os.Stat(root)
	switch {
	case err == nil && !info.IsDir():
		return nil, errors.NewValidationError("destination_root", "not a directory: "+root, nil)
	case err != nil && !os.IsNotExist(err):
		return nil, errors.NewValidationError("destination_root", "cannot access "+root, err)
	}
	create := err != nil && !req.DryRun

	rules := req.Ruleset.Normalized()
	if err := rules.Validate(); err != nil {
		return nil, errors.NewValidationError("ruleset", "invalid ruleset", err)
	}
	class := req.Classification.withDefaults()
	if err := class.validate(); err != nil {
		return nil, errors.NewValidationError("unclassified", "invalid unclassified policy", err)
	}

	buckets := make(map[string]bool, len(rules)+1)
	for _, c := range rules {
		buckets[c.Name] = true
	}
	if class.Unclassified == types.UnclassifiedOther {
		buckets[class.OtherCategory] = true
	}

	b := &batch{root: root, rules: rules, class: class, dryRun: req.DryRun, create: create}
	for _, f := range req.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = filepath.Clean(f)
		}
		if insideBucket(root, abs, buckets) {
			o.log.With(log.F("file", f)).Debug("already organized, skipping")
			continue
		}
		b.files = append(b.files, f)
		b.sources = append(b.sources, abs)
	}
	return b, nil
}

// insideBucket reports whether path lies under root/<bucket>/.
func insideBucket(root, path string, buckets map[string]bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return false
	}
	first, _, found := strings.Cut(rel, string(filepath.Separator))
	return found && buckets[first]
}

func (o *Orchestrator) work(ctx context.Context, run *Run, b *batch, lock *destinationLock) {
	logger := o.log.With(log.F("run_id", run.id))
	planner := NewPlanner(b.root, b.dryRun)

	o.emit(run, run.state.Snapshot())

	for i, src := range b.sources {
		if run.state.Cancelled() || ctx.Err() != nil {
			run.state.Cancel()
			logger.Infof("batch cancelled after %d of %d files", i, len(b.sources))
			break
		}
		res := o.process(planner, b, b.files[i], src)
		run.addResult(res)
		o.emit(run, run.state.record(res))
	}

	run.cancelFn()
	if err := lock.release(); err != nil {
		logger.WithError(err).Warn("failed to release destination lock")
	}

	summary := run.buildSummary(time.Now())
	final := run.state.finish()

	if o.recorder != nil {
		if err := o.recorder.RecordRun(context.Background(), summary); err != nil {
			logger.WithError(err).Warn("failed to record run")
		}
	}

	o.mu.Lock()
	o.state = Finished
	o.mu.Unlock()

	o.emit(run, final)
	close(run.events)
	close(run.done)

	logger.With(
		log.F("succeeded", summary.Succeeded),
		log.F("failed", summary.Failed),
		log.F("cancelled", summary.Cancelled),
	).Infof("batch finished in %s", summary.Duration().Round(time.Millisecond))
}

// process handles one file. It never panics and never returns an error;
// every failure becomes an unsuccessful result.
func (o *Orchestrator) process(planner *Planner, b *batch, given, src string) (res types.FileResult) {
	res.FilePath = given
	logger := o.log.With(log.F("file", given))

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Message = fmt.Sprintf("internal error: %v", r)
			logger.Errorf("recovered from panic: %v", r)
		}
	}()

	fail := func(err error) types.FileResult {
		res.Success = false
		res.Message = err.Error()
		logger.WithError(err).Warn("file not organized")
		return res
	}

	info, err := os.Lstat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(errors.NewKind(errors.TransferFailed, "move failed",
				errors.NewFileError("file does not exist", given, errors.FileNotFound, err)))
		}
		return fail(errors.NewKind(errors.TransferFailed, "move failed",
			errors.NewFileError("cannot stat file", given, errors.FileOperationFailed, err)))
	}
	if info.IsDir() {
		return fail(errors.NewKind(errors.TransferFailed, "move failed",
			errors.NewFileError("is a directory", given, errors.InvalidOperation, nil)))
	}
	res.Size = info.Size()

	if o.access != nil && !o.access.HasAccess(src) {
		return fail(errors.NewKind(errors.TransferFailed, "move failed",
			errors.NewFileError("permission denied", given, errors.FileAccessDenied, nil)))
	}

	category, err := Classify(src, b.rules, b.class)
	if err != nil {
		res.Success = false
		res.Message = err.Error()
		logger.Debug("unclassified, skipping")
		return res
	}
	res.Category = category

	dest, err := planner.Plan(src, category)
	if err != nil {
		return fail(err)
	}
	defer planner.Release(dest)

	if b.dryRun {
		res.Success = true
		res.DestinationPath = dest
		res.Message = "would move to " + category
		logger.With(log.F("dest", dest)).Debug("planned")
		return res
	}

	if err := o.transfer.Transfer(src, dest); err != nil {
		return fail(err)
	}

	res.Success = true
	res.DestinationPath = dest
	res.Message = "moved to " + category
	logger.With(log.F("dest", dest), log.F("category", category)).Debug("moved")
	return res
}

func (o *Orchestrator) emit(run *Run, p types.Progress) {
	run.events <- p
	for _, obs := range o.observers {
		obs(p)
	}
}
