// Package indexer holds what the embedding pipeline and the index builder
// share: output locks, run ids and the build manifest.
package indexer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// ErrLocked is returned when another run holds the output lock.
var ErrLocked = errors.New("indexer: output is locked by another run")

// LockOutput takes an exclusive advisory lock next to path.
func LockOutput(path string) (*flock.Flock, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	return lock, nil
}

// Unlock releases the lock and removes its file.
func Unlock(lock *flock.Flock) {
	_ = lock.Unlock()
	_ = os.Remove(lock.Path())
}

// NewRunID tags the log lines of one pipeline or build run.
func NewRunID() string {
	return uuid.NewString()
}
