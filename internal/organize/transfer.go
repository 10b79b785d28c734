package organize

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"shiwake/internal/errors"
	"shiwake/internal/log"

	"github.com/dustin/go-humanize"
)

// Transferer moves one file to a destination that the planner has reserved.
type Transferer interface {
	Transfer(src, dst string) error
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPermissionRepair enables the chmod-and-retry pass on permission errors.
func WithPermissionRepair(enabled bool) ExecutorOption {
	return func(e *Executor) { e.repair = enabled }
}

// WithExecutorLogger sets the logger used for transfer details.
func WithExecutorLogger(l *log.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// Executor moves files by rename, falling back to copy-then-delete across
// volumes.
type Executor struct {
	repair bool
	log    *log.Logger

	rename    func(oldpath, newpath string) error
	chmod     func(name string, mode os.FileMode) error
	remove    func(name string) error
	freeSpace func(dir string) (uint64, bool)
}

// NewExecutor returns an executor with permission repair enabled.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		repair:    true,
		log:       log.Default(),
		rename:    os.Rename,
		chmod:     os.Chmod,
		remove:    os.Remove,
		freeSpace: freeBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer moves src to dst. dst must not exist. The source is only removed
// once the destination is completely written.
func (e *Executor) Transfer(src, dst string) error {
	err := e.move(src, dst)
	if err == nil {
		return nil
	}
	if e.repair && errors.Is(err, fs.ErrPermission) {
		e.log.With(log.F("file", src)).Debug("permission denied, repairing and retrying")
		e.repairPermissions(src, dst)
		err = e.move(src, dst)
	}
	if err == nil {
		return nil
	}
	return transferError(src, err)
}

func (e *Executor) move(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return errors.NewFileError("destination exists", dst, errors.InvalidOperation, fs.ErrExist)
	}

	err := e.rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	e.log.With(log.F("file", src), log.F("dest", dst)).Debug("cross-device move, copying")
	return e.copyAcross(src, dst)
}

// copyAcross copies src into a temp file next to dst, renames it into place
// and then removes src. If src cannot be removed, dst is removed again.
func (e *Executor) copyAcross(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if free, ok := e.freeSpace(dir); ok && free < uint64(info.Size()) {
		return errors.NewKind(errors.InsufficientSpace,
			fmt.Sprintf("need %s, %s free", humanize.IBytes(uint64(info.Size())), humanize.IBytes(free)), nil)
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, in)
	if err != nil {
		return err
	}
	if n != info.Size() {
		return fmt.Errorf("short copy: wrote %d of %d bytes", n, info.Size())
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}
	committed = true

	in.Close()
	if err := e.remove(src); err != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			e.log.WithError(rmErr).With(log.F("dest", dst)).Error("could not undo copy")
		}
		return fmt.Errorf("copied but could not remove source: %w", err)
	}
	return nil
}

// repairPermissions adds u+w to the source file and u+wx to both folders.
// Failures are ignored; the retry reports what is still wrong.
func (e *Executor) repairPermissions(src, dst string) {
	add := func(path string, bits os.FileMode) {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		mode := info.Mode().Perm()
		if mode&bits == bits {
			return
		}
		if err := e.chmod(path, mode|bits); err != nil {
			e.log.WithError(err).With(log.F("file", path)).Debug("chmod failed")
		}
	}
	add(src, 0200)
	add(filepath.Dir(src), 0300)
	add(filepath.Dir(dst), 0300)
}

const tempPattern = ".shiwake-*.part"

func transferError(src string, err error) error {
	switch {
	case errors.IsKind(err, errors.InsufficientSpace):
		return errors.NewKind(errors.TransferFailed, "move failed", err)
	case errors.Is(err, fs.ErrPermission):
		return errors.NewKind(errors.TransferFailed, "move failed",
			errors.NewFileError("permission denied", src, errors.FileAccessDenied, err))
	case errors.Is(err, fs.ErrNotExist):
		return errors.NewKind(errors.TransferFailed, "move failed",
			errors.NewFileError("file does not exist", src, errors.FileNotFound, err))
	default:
		return errors.NewKind(errors.TransferFailed, "move failed", err)
	}
}
