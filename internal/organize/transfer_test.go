package organize

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"shiwake/internal/errors"
	"shiwake/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietExecutor(opts ...ExecutorOption) *Executor {
	opts = append([]ExecutorOption{WithExecutorLogger(log.NewLogger(log.WithOutput(io.Discard)))}, opts...)
	return NewExecutor(opts...)
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	require.NoError(t, os.Chmod(path, mode))
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".shiwake-"), "temp file left behind: %s", e.Name())
	}
}

func permissionDenied(oldpath, newpath string) error {
	return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EACCES}
}

func TestTransferRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "a.txt")
	dst := filepath.Join(dir, "out", "a.txt")
	writeFile(t, src, "hello", 0644)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, quietExecutor().Transfer(src, dst))

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestTransferNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "out", "a.txt")
	writeFile(t, src, "new", 0644)
	writeFile(t, dst, "old", 0644)

	err := quietExecutor().Transfer(src, dst)
	require.Error(t, err)
	assert.True(t, errors.IsTransfer(err))

	data, _ := os.ReadFile(dst)
	assert.Equal(t, "old", string(data))
	assert.FileExists(t, src)
}

func TestTransferMissingSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0755))

	err := quietExecutor().Transfer(filepath.Join(dir, "gone.txt"), filepath.Join(dir, "out", "gone.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsTransfer(err))
	assert.True(t, errors.IsFileNotFound(err))
}

func TestTransferRepairsPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "locked.txt")
	dst := filepath.Join(dir, "out", "locked.txt")
	writeFile(t, src, "data", 0444)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	e := quietExecutor()
	calls := 0
	e.rename = func(oldpath, newpath string) error {
		calls++
		if calls == 1 {
			return permissionDenied(oldpath, newpath)
		}
		return os.Rename(oldpath, newpath)
	}
	var chmodded []string
	e.chmod = func(name string, mode os.FileMode) error {
		chmodded = append(chmodded, name)
		return os.Chmod(name, mode)
	}

	require.NoError(t, e.Transfer(src, dst))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{src}, chmodded, "only the read-only file needed repair")

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestTransferUnfixablePermission(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "a.txt")
	dst := filepath.Join(dir, "out", "a.txt")
	writeFile(t, src, "data", 0644)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	e := quietExecutor()
	calls := 0
	e.rename = func(oldpath, newpath string) error {
		calls++
		return permissionDenied(oldpath, newpath)
	}

	err := e.Transfer(src, dst)
	require.Error(t, err)
	assert.Equal(t, 2, calls, "exactly one retry")
	assert.True(t, errors.IsTransfer(err))
	assert.True(t, errors.IsFileAccessDenied(err))
	assert.Contains(t, err.Error(), "permission denied")
	assert.FileExists(t, src)
}

func TestTransferRepairDisabled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	writeFile(t, src, "data", 0644)

	e := quietExecutor(WithPermissionRepair(false))
	calls := 0
	e.rename = func(oldpath, newpath string) error {
		calls++
		return permissionDenied(oldpath, newpath)
	}

	require.Error(t, e.Transfer(src, filepath.Join(dir, "b.txt")))
	assert.Equal(t, 1, calls)
}
