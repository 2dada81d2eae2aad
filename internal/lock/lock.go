// Package lock guards a data directory against concurrent writers from
// other coderag processes.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside the data directory.
const FileName = ".coderag.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("data directory is in use by another coderag process")

// DirLock is an exclusive, non-blocking lock on a directory.
type DirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// Acquire takes the lock for dir, creating dir if needed. It fails with
// ErrLocked instead of waiting when the lock is held elsewhere.
func Acquire(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	l := &DirLock{path: path, flock: flock.New(path)}

	ok, err := l.flock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	l.locked = true
	return l, nil
}

// Release unlocks. Calling it more than once is harmless.
func (l *DirLock) Release() error {
	if l == nil || !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *DirLock) Path() string {
	return l.path
}
