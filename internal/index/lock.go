package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock is the advisory, cross-process lock guarding one index() call at a
// time (§5: the single-writer guarantee). It is held for the duration of a
// single Indexer.Run and never held across queries.
type RunLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewRunLock creates a lock backed by <stateDir>/index.lock.
func NewRunLock(stateDir string) *RunLock {
	path := filepath.Join(stateDir, "index.lock")
	return &RunLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking. A concurrent index
// run elsewhere returns (false, nil), which callers turn into a retryable
// error.
func (l *RunLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call even if never locked.
func (l *RunLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
