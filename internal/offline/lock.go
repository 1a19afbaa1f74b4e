package offline

import (
	"errors"
	"fmt"
	"os"
)

// ErrLocked is returned by TryLock when another holder has the lock.
var ErrLocked = errors.New("offline: lock held elsewhere")

// FileLock is an exclusive advisory lock on a sidecar file. It serialises
// every process sharing a queue directory. Each Lock or TryLock opens its own
// handle, so two holders in one process also exclude each other.
type FileLock struct {
	path string
}

// NewFileLock returns a lock backed by path. The file is created on first use
// and never removed.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.path }

// Lock blocks until the lock is held and returns its release func.
func (l *FileLock) Lock() (func(), error) {
	return l.acquire(true)
}

// TryLock takes the lock without waiting. It returns ErrLocked when the lock
// is already held.
func (l *FileLock) TryLock() (func(), error) {
	return l.acquire(false)
}

func (l *FileLock) acquire(wait bool) (func(), error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("offline: open lock: %w", err)
	}
	if err := lockFile(f, wait); err != nil {
		_ = f.Close()
		if isWouldBlockError(err) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("offline: lock %s: %w", l.path, err)
	}
	return func() {
		_ = unlockFile(f)
		_ = f.Close()
	}, nil
}
