package util

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
)

var ErrAlreadyRunning = errors.New("another instance holds the lock")

// LockFile takes an exclusive non-blocking lock on path. The lock lasts
// until Unlock is called or the process exits.
func LockFile(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create lock directory for %v", path)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to lock %v", path)
	}
	if !locked {
		return nil, errors.Wrapf(ErrAlreadyRunning, "lock file %v", path)
	}
	return lock, nil
}
