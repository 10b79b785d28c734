package organize_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"shiwake/internal/errors"
	"shiwake/internal/log"
	"shiwake/internal/organize"
	"shiwake/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transferFunc func(src, dst string) error

func (f transferFunc) Transfer(src, dst string) error { return f(src, dst) }

type accessFunc func(path string) bool

func (f accessFunc) HasAccess(path string) bool { return f(path) }

type memoryRecorder struct {
	mu   sync.Mutex
	runs []types.RunSummary
}

func (r *memoryRecorder) RecordRun(_ context.Context, s types.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, s)
	return nil
}

var quiet = log.NewLogger(log.WithOutput(io.Discard))

func newOrchestrator(t *testing.T, lockDir string, opts ...organize.Option) *organize.Orchestrator {
	t.Helper()
	if lockDir == "" {
		lockDir = t.TempDir()
	}
	base := []organize.Option{organize.WithLockDir(lockDir), organize.WithLogger(quiet)}
	return organize.NewOrchestrator(append(base, opts...)...)
}

func createFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("content of "+name), 0644))
		paths = append(paths, p)
	}
	return paths
}

// drain reads every event of run until the channel closes.
func drain(t *testing.T, run *organize.Run) []types.Progress {
	t.Helper()
	var events []types.Progress
	timeout := time.After(10 * time.Second)
	for {
		select {
		case p, ok := <-run.Events():
			if !ok {
				return events
			}
			events = append(events, p)
		case <-timeout:
			t.Fatal("run did not finish")
			return nil
		}
	}
}

func wait(t *testing.T, run *organize.Run) types.RunSummary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := run.Wait(ctx)
	require.NoError(t, err)
	return s
}

func assertStreamInvariants(t *testing.T, events []types.Progress, total int) {
	t.Helper()
	require.NotEmpty(t, events)
	finished := 0
	last := -1
	for i, p := range events {
		assert.Equal(t, total, p.TotalFiles)
		assert.LessOrEqual(t, p.ProcessedFiles, p.TotalFiles)
		assert.GreaterOrEqual(t, p.ProcessedFiles, last, "processed never decreases")
		last = p.ProcessedFiles
		if p.Finished {
			finished++
			assert.Equal(t, len(events)-1, i, "finished is the last event")
			assert.Nil(t, p.CurrentResult)
		}
	}
	assert.Equal(t, 1, finished, "exactly one finished event")
	assert.Equal(t, 0, events[0].ProcessedFiles)
}

func TestStartBatchOrganizesFiles(t *testing.T) {
	in := t.TempDir()
	root := filepath.Join(t.TempDir(), "sorted")
	files := createFiles(t, in, "a.jpg", "b.PDF", "c.txt", "d.xyz", "Makefile")

	rec := &memoryRecorder{}
	o := newOrchestrator(t, "", organize.WithRecorder(rec))
	assert.Equal(t, organize.Idle, o.State())

	run, err := o.StartBatch(context.Background(), organize.Request{
		Files:           files,
		DestinationRoot: root,
		Ruleset:         testRules,
	})
	require.NoError(t, err)

	events := drain(t, run)
	summary := wait(t, run)

	assertStreamInvariants(t, events, 5)
	assert.Len(t, events, 5+2)
	assert.Equal(t, organize.Finished, o.State())

	assert.Equal(t, 5, summary.ProcessedFiles)
	assert.Equal(t, 5, summary.Succeeded)
	assert.False(t, summary.Cancelled)
	assert.NotEmpty(t, summary.RunID)

	want := map[string]string{
		"a.jpg":    filepath.Join(root, "Images", "a.jpg"),
		"b.PDF":    filepath.Join(root, "Documents", "b.PDF"),
		"c.txt":    filepath.Join(root, "Documents", "c.txt"),
		"d.xyz":    filepath.Join(root, "Others", "d.xyz"),
		"Makefile": filepath.Join(root, "Others", "Makefile"),
	}
	for i, res := range summary.Results {
		name := filepath.Base(files[i])
		assert.Equal(t, files[i], res.FilePath, "results keep input order")
		assert.True(t, res.Success, res.Message)
		assert.Equal(t, want[name], res.DestinationPath)
		assert.NoFileExists(t, files[i])

		data, err := os.ReadFile(res.DestinationPath)
		require.NoError(t, err)
		assert.Equal(t, "content of "+name, string(data))
	}
	assert.Equal(t, "moved to Images", summary.Results[0].Message)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, summary.RunID, rec.runs[0].RunID)
	assert.Equal(t, 5, rec.runs[0].Succeeded)
}

func TestStartBatchValidation(t *testing.T) {
	dir := t.TempDir()
	file := createFiles(t, dir, "plain.txt")[0]

	tests := []struct {
		name  string
		req   organize.Request
		field string
	}{
		{"no files", organize.Request{DestinationRoot: dir, Ruleset: testRules}, "files"},
		{"no destination", organize.Request{Files: []string{file}, Ruleset: testRules}, "destination_root"},
		{"destination is a file", organize.Request{Files: []string{file}, DestinationRoot: file, Ruleset: testRules}, "destination_root"},
		{"bad ruleset", organize.Request{Files: []string{file}, DestinationRoot: dir, Ruleset: types.Ruleset{{Name: "a/b"}}}, "ruleset"},
		{"bad policy", organize.Request{Files: []string{file}, DestinationRoot: dir, Ruleset: testRules,
			Classification: organize.Classification{Unclassified: "delete"}}, "unclassified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(t, "")
			run, err := o.StartBatch(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, run)
			assert.True(t, errors.IsValidation(err))

			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field())
			assert.Equal(t, organize.Idle, o.State())
			assert.FileExists(t, file)
		})
	}
}

func TestStartBatchCreatesDestination(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")
	files := createFiles(t, t.TempDir(), "x.png")

	run, err := newOrchestrator(t, "").StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	wait(t, run)
	assert.FileExists(t, filepath.Join(root, "Images", "x.png"))
}

// gate blocks every transfer until released.
type gate struct {
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}, 100), release: make(chan struct{})}
}

func (g *gate) Transfer(src, dst string) error {
	g.started <- struct{}{}
	<-g.release
	return os.Rename(src, dst)
}

func TestStartBatchRejectsOverlap(t *testing.T) {
	in := t.TempDir()
	root := t.TempDir()
	g := newGate()
	o := newOrchestrator(t, "", organize.WithTransferer(g))

	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: createFiles(t, in, "a.txt"), DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	<-g.started
	assert.Equal(t, organize.Running, o.State())

	_, err = o.StartBatch(context.Background(), organize.Request{
		Files: createFiles(t, in, "b.txt"), DestinationRoot: root, Ruleset: testRules,
	})
	require.Error(t, err)
	assert.True(t, errors.IsBatchInProgress(err))

	close(g.release)
	wait(t, run)
	assert.Equal(t, organize.Finished, o.State())

	// Finished runs do not block the next one.
	next, err := o.StartBatch(context.Background(), organize.Request{
		Files: []string{filepath.Join(in, "b.txt")}, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, wait(t, next).Succeeded)
}

func TestDestinationLockedAcrossOrchestrators(t *testing.T) {
	in := t.TempDir()
	root := t.TempDir()
	lockDir := t.TempDir()
	g := newGate()

	first := newOrchestrator(t, lockDir, organize.WithTransferer(g))
	run, err := first.StartBatch(context.Background(), organize.Request{
		Files: createFiles(t, in, "a.txt"), DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	<-g.started

	second := newOrchestrator(t, lockDir)
	_, err = second.StartBatch(context.Background(), organize.Request{
		Files: createFiles(t, in, "b.txt"), DestinationRoot: root, Ruleset: testRules,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "locked")

	close(g.release)
	wait(t, run)

	again, err := second.StartBatch(context.Background(), organize.Request{
		Files: []string{filepath.Join(in, "b.txt")}, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	wait(t, again)
}

func TestCancelAfterThirdOutcome(t *testing.T) {
	in := t.TempDir()
	root := t.TempDir()
	names := []string{"1.txt", "2.txt", "3.txt", "4.txt", "5.txt", "6.txt", "7.txt", "8.txt", "9.txt", "10.txt"}
	files := createFiles(t, in, names...)

	var o *organize.Orchestrator
	o = newOrchestrator(t, "", organize.WithObserver(func(p types.Progress) {
		if p.ProcessedFiles == 3 && !p.Finished {
			o.CancelBatch()
		}
	}))

	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)

	events := drain(t, run)
	summary := wait(t, run)

	assertStreamInvariants(t, events, 10)
	final := events[len(events)-1]
	assert.True(t, final.Finished)
	assert.True(t, final.Cancelled)
	assert.Equal(t, 3, final.ProcessedFiles)

	assert.True(t, summary.Cancelled)
	require.Len(t, summary.Results, 3)
	for i, f := range files {
		if i < 3 {
			assert.NoFileExists(t, f)
		} else {
			assert.FileExists(t, f, "unprocessed files stay put")
		}
	}
	assert.Equal(t, organize.Finished, o.State())
}

func TestCancelViaRunHandleAndState(t *testing.T) {
	g := newGate()
	o := newOrchestrator(t, "", organize.WithTransferer(g))
	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: createFiles(t, t.TempDir(), "a.txt", "b.txt"), DestinationRoot: t.TempDir(), Ruleset: testRules,
	})
	require.NoError(t, err)
	<-g.started

	run.Cancel()
	run.Cancel()
	assert.Equal(t, organize.Cancelling, o.State())

	close(g.release)
	summary := wait(t, run)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.ProcessedFiles, "the in-flight transfer completes")
	assert.Equal(t, organize.Finished, o.State())
}

func TestCancelBatchWhenIdle(t *testing.T) {
	o := newOrchestrator(t, "")
	o.CancelBatch()
	assert.Equal(t, organize.Idle, o.State())
	assert.Nil(t, o.Current())
}

func TestContextCancellationStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := newGate()
	o := newOrchestrator(t, "", organize.WithTransferer(g))

	run, err := o.StartBatch(ctx, organize.Request{
		Files: createFiles(t, t.TempDir(), "a.txt", "b.txt", "c.txt"), DestinationRoot: t.TempDir(), Ruleset: testRules,
	})
	require.NoError(t, err)
	<-g.started
	cancel()
	close(g.release)

	summary := wait(t, run)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.ProcessedFiles)
}

func TestTimeoutStopsRun(t *testing.T) {
	slow := transferFunc(func(src, dst string) error {
		time.Sleep(200 * time.Millisecond)
		return os.Rename(src, dst)
	})
	o := newOrchestrator(t, "", organize.WithTransferer(slow))

	run, err := o.StartBatch(context.Background(), organize.Request{
		Files:           createFiles(t, t.TempDir(), "a.txt", "b.txt", "c.txt"),
		DestinationRoot: t.TempDir(),
		Ruleset:         testRules,
		Timeout:         20 * time.Millisecond,
	})
	require.NoError(t, err)

	summary := wait(t, run)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.ProcessedFiles)
}

func TestPartialFailureContinues(t *testing.T) {
	in := t.TempDir()
	root := t.TempDir()
	files := createFiles(t, in, "1.txt", "2.txt", "3.txt", "4.txt", "5.txt")

	exec := organize.NewExecutor(organize.WithExecutorLogger(quiet))
	failing := transferFunc(func(src, dst string) error {
		if filepath.Base(src) == "3.txt" {
			return errors.NewKind(errors.TransferFailed, "move failed",
				errors.NewFileError("permission denied", src, errors.FileAccessDenied, os.ErrPermission))
		}
		return exec.Transfer(src, dst)
	})

	o := newOrchestrator(t, "", organize.WithTransferer(failing))
	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	summary := wait(t, run)

	require.Len(t, summary.Results, 5)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	for i, res := range summary.Results {
		if i == 2 {
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, "permission denied")
			assert.Empty(t, res.DestinationPath)
			assert.FileExists(t, files[i])
			continue
		}
		assert.True(t, res.Success, res.Message)
	}
}

func TestPanickingTransferIsContained(t *testing.T) {
	var calls int
	boomOnce := transferFunc(func(src, dst string) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return os.Rename(src, dst)
	})
	o := newOrchestrator(t, "", organize.WithTransferer(boomOnce))

	root := t.TempDir()
	first := createFiles(t, t.TempDir(), "x.txt")
	second := createFiles(t, t.TempDir(), "x.txt")
	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: append(first, second...), DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	summary := wait(t, run)
	require.Len(t, summary.Results, 2)
	assert.False(t, summary.Results[0].Success)
	assert.Contains(t, summary.Results[0].Message, "boom")

	// The failed file's reservation is gone, so the next one keeps its name.
	require.True(t, summary.Results[1].Success, summary.Results[1].Message)
	assert.Equal(t, filepath.Join(root, "Documents", "x.txt"), summary.Results[1].DestinationPath)
	assert.FileExists(t, filepath.Join(root, "Documents", "x.txt"))
	assert.NoFileExists(t, filepath.Join(root, "Documents", "x (1).txt"))
}

func TestLockFailureLeavesDestinationUntouched(t *testing.T) {
	blocker := createFiles(t, t.TempDir(), "file")[0]
	root := filepath.Join(t.TempDir(), "missing")

	o := newOrchestrator(t, filepath.Join(blocker, "locks"))
	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: createFiles(t, t.TempDir(), "a.txt"), DestinationRoot: root, Ruleset: testRules,
	})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "cannot lock destination")
	assert.NotContains(t, err.Error(), "destination is locked")
	assert.NoDirExists(t, root)
	assert.Equal(t, organize.Idle, o.State())
}

func TestUnclassifiedSkip(t *testing.T) {
	in := t.TempDir()
	root := t.TempDir()
	files := createFiles(t, in, "notes.xyz", "photo.jpg")

	o := newOrchestrator(t, "")
	run, err := o.StartBatch(context.Background(), organize.Request{
		Files:           files,
		DestinationRoot: root,
		Ruleset:         testRules,
		Classification:  organize.Classification{Unclassified: types.UnclassifiedSkip},
	})
	require.NoError(t, err)
	summary := wait(t, run)

	require.Len(t, summary.Results, 2)
	assert.False(t, summary.Results[0].Success)
	assert.Equal(t, "unclassified", summary.Results[0].Message)
	assert.FileExists(t, files[0])
	assert.NoDirExists(t, filepath.Join(root, "Others"))
	assert.True(t, summary.Results[1].Success)
}

func TestMissingSourceAndDirectory(t *testing.T) {
	in := t.TempDir()
	files := createFiles(t, in, "gone.txt")
	require.NoError(t, os.Remove(files[0]))
	sub := filepath.Join(in, "folder.txt")
	require.NoError(t, os.Mkdir(sub, 0755))

	o := newOrchestrator(t, "")
	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: []string{files[0], sub}, DestinationRoot: t.TempDir(), Ruleset: testRules,
	})
	require.NoError(t, err)
	summary := wait(t, run)

	require.Len(t, summary.Results, 2)
	assert.Contains(t, summary.Results[0].Message, "file does not exist")
	assert.Contains(t, summary.Results[1].Message, "is a directory")
	assert.DirExists(t, sub)
}

func TestAccessCheckerDenies(t *testing.T) {
	files := createFiles(t, t.TempDir(), "open.txt", "locked.txt")
	deny := accessFunc(func(path string) bool { return !strings.Contains(path, "locked") })

	o := newOrchestrator(t, "", organize.WithAccessChecker(deny))
	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: t.TempDir(), Ruleset: testRules,
	})
	require.NoError(t, err)
	summary := wait(t, run)

	assert.True(t, summary.Results[0].Success)
	assert.False(t, summary.Results[1].Success)
	assert.Contains(t, summary.Results[1].Message, "permission denied")
	assert.FileExists(t, files[1])
}

func TestCollisionsWithinBatch(t *testing.T) {
	root := t.TempDir()
	createFiles(t, root, "Images/photo.jpg")
	files := []string{
		createFiles(t, t.TempDir(), "photo.jpg")[0],
		createFiles(t, t.TempDir(), "photo.jpg")[0],
	}

	run, err := newOrchestrator(t, "").StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	summary := wait(t, run)

	assert.Equal(t, filepath.Join(root, "Images", "photo (1).jpg"), summary.Results[0].DestinationPath)
	assert.Equal(t, filepath.Join(root, "Images", "photo (2).jpg"), summary.Results[1].DestinationPath)
	assert.FileExists(t, filepath.Join(root, "Images", "photo.jpg"))
}

func TestRerunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	files := createFiles(t, t.TempDir(), "a.jpg", "b.txt", "c.bin")
	o := newOrchestrator(t, "")

	run, err := o.StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	first := wait(t, run)

	var organized []string
	for _, res := range first.Results {
		organized = append(organized, res.DestinationPath)
	}

	run, err = o.StartBatch(context.Background(), organize.Request{
		Files: organized, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	events := drain(t, run)
	second := wait(t, run)

	assert.Equal(t, 0, second.TotalFiles, "files already in category folders are left alone")
	assert.Empty(t, second.Results)
	assertStreamInvariants(t, events, 0)
	for _, p := range organized {
		assert.FileExists(t, p)
	}
}

func TestDryRun(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-yet")
	files := []string{
		createFiles(t, t.TempDir(), "photo.jpg")[0],
		createFiles(t, t.TempDir(), "photo.jpg")[0],
	}

	run, err := newOrchestrator(t, "").StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: root, Ruleset: testRules, DryRun: true,
	})
	require.NoError(t, err)
	summary := wait(t, run)

	assert.True(t, summary.DryRun)
	assert.Equal(t, "would move to Images", summary.Results[0].Message)
	assert.Equal(t, filepath.Join(root, "Images", "photo.jpg"), summary.Results[0].DestinationPath)
	assert.Equal(t, filepath.Join(root, "Images", "photo (1).jpg"), summary.Results[1].DestinationPath)
	for _, f := range files {
		assert.FileExists(t, f)
	}
	assert.NoDirExists(t, root)
}

func TestNoTempFilesAfterRun(t *testing.T) {
	root := t.TempDir()
	files := createFiles(t, t.TempDir(), "a.jpg", "b.jpg", "c.pdf")

	run, err := newOrchestrator(t, "").StartBatch(context.Background(), organize.Request{
		Files: files, DestinationRoot: root, Ruleset: testRules,
	})
	require.NoError(t, err)
	wait(t, run)

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		assert.False(t, strings.HasSuffix(d.Name(), ".part"), path)
		return nil
	})
	require.NoError(t, err)
}
