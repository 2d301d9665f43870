package monitor

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Iron-Ham/lockstep/internal/errors"
)

const flockFileName = "locks.flock"

// stateLock provides cross-process mutual exclusion around the lock-table file.
// Used when several lockstep processes share one state directory. It is not
// reentrant and must be used by one goroutine at a time; the monitor's mutex
// guarantees that.
type stateLock struct {
	path string
	fl   *flock.Flock
}

// newStateLock creates a stateLock for the given directory. The lock file is
// created inside dir as "locks.flock" on first use.
func newStateLock(dir string) *stateLock {
	path := filepath.Join(dir, flockFileName)
	return &stateLock{
		path: path,
		fl:   flock.New(path),
	}
}

// Lock acquires an exclusive lock, blocking until available.
func (sl *stateLock) Lock() error {
	if err := sl.fl.Lock(); err != nil {
		return errors.Wrapf(err, "flock %s", sl.path)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another process holds it.
func (sl *stateLock) TryLock() (bool, error) {
	ok, err := sl.fl.TryLock()
	if err != nil {
		return false, errors.Wrapf(err, "flock %s", sl.path)
	}
	return ok, nil
}

// Unlock releases the lock and closes the lock file. Unlocking an unheld lock
// is a no-op.
func (sl *stateLock) Unlock() error {
	if err := sl.fl.Unlock(); err != nil {
		return errors.Wrapf(err, "funlock %s", sl.path)
	}
	return nil
}
