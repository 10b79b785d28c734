package organize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// destinationLock is an advisory per-root lock so that two processes never
// organize into the same destination at once. The lock file lives outside
// the destination so that it never shows up among organized files.
type destinationLock struct {
	path string
	lock *flock.Flock
}

// defaultLockDir returns the user cache dir, or the temp dir when there is
// none.
// errDestinationBusy means another process holds the lock for the root.
var errDestinationBusy = errors.New("destination is locked")

func defaultLockDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "shiwake", "locks")
	}
	return filepath.Join(os.TempDir(), "shiwake-locks")
}

func lockPathFor(dir, root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock")
}

// acquireDestinationLock takes the lock for root without blocking. It
// returns an error wrapping errDestinationBusy only when the lock is held
// elsewhere.
func acquireDestinationLock(dir, root string) (*destinationLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := lockPathFor(dir, root)
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: another run is organizing into %s", errDestinationBusy, root)
	}
	return &destinationLock{path: path, lock: l}, nil
}

func (d *destinationLock) release() error {
	if d == nil {
		return nil
	}
	return d.lock.Unlock()
}
