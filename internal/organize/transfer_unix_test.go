//go:build unix

package organize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "shiwake/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// crossDevice makes every rename through the executor look like it spans
// two volumes. The temp-to-final rename inside the copy path is unaffected.
func crossDevice(e *Executor) {
	e.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EXDEV}
	}
}

func TestTransferCrossDeviceCopies(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "movie.mkv")
	dst := filepath.Join(dir, "out", "movie.mkv")
	writeFile(t, src, "frames", 0640)
	mtime := time.Date(2020, 5, 17, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, mtime, mtime))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	e := quietExecutor()
	crossDevice(e)
	require.NoError(t, e.Transfer(src, dst))

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(mtime))
	assertNoTempFiles(t, filepath.Dir(dst))
}

func TestTransferCrossDeviceInsufficientSpace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.iso")
	dst := filepath.Join(dir, "out", "big.iso")
	writeFile(t, src, "0123456789", 0644)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	e := quietExecutor()
	crossDevice(e)
	e.freeSpace = func(string) (uint64, bool) { return 4, true }

	err := e.Transfer(src, dst)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransfer(err))
	assert.True(t, apperrors.IsInsufficientSpace(err))
	assert.FileExists(t, src)
	assert.NoFileExists(t, dst)
	assertNoTempFiles(t, filepath.Dir(dst))
}

func TestTransferCrossDeviceSourceRemovalFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "keep.txt")
	dst := filepath.Join(dir, "out", "keep.txt")
	writeFile(t, src, "content", 0644)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	e := quietExecutor()
	crossDevice(e)
	e.remove = func(string) error { return errors.New("device busy") }

	err := e.Transfer(src, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	assert.FileExists(t, src)
	assert.NoFileExists(t, dst, "no duplicate is left behind")
	assertNoTempFiles(t, filepath.Dir(dst))
}

func TestIsCrossDevice(t *testing.T) {
	assert.True(t, isCrossDevice(&os.LinkError{Err: unix.EXDEV}))
	assert.False(t, isCrossDevice(&os.LinkError{Err: unix.EACCES}))
	assert.False(t, isCrossDevice(nil))
}
