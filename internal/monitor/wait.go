package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/lockstep/internal/errors"
	"github.com/Iron-Ham/lockstep/internal/event"
	"github.com/Iron-Ham/lockstep/internal/filelock"
)

// WaitForLockRelease blocks until path is unheld. It rechecks whenever any
// lock is released and at every poll interval. A timeout of zero or less uses
// the monitor's default. When the budget runs out a *errors.TimeoutError is
// returned; a cancelled ctx returns ctx.Err().
//
// Becoming unheld does not reserve the path: concurrent waiters race to
// re-acquire it and the losers see a new conflict.
func (m *Monitor) WaitForLockRelease(ctx context.Context, path string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = m.waitTimeout
	}
	key := filelock.NormalizePath(path)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		// Take the signal before checking so a release in between is not missed.
		released := m.releaseSignal()

		m.Refresh()
		if _, held := m.registry.CheckLock(key); !held {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			m.logger.Warn("timed out waiting for lock release",
				"path", key,
				"timeout", timeout.String())
			m.publish(event.NewWaitTimedOutEvent(key, timeout))
			return errors.NewTimeoutError(fmt.Sprintf("waiting for release of %s", key), timeout)
		case <-released:
		case <-ticker.C:
		}
	}
}

func (m *Monitor) releaseSignal() <-chan struct{} {
	m.releaseMu.Lock()
	defer m.releaseMu.Unlock()
	return m.released
}

// signalRelease is the registry's release hook.
func (m *Monitor) signalRelease(filelock.FileLock) {
	m.broadcastRelease()
}

// broadcastRelease wakes every current waiter.
func (m *Monitor) broadcastRelease() {
	m.releaseMu.Lock()
	defer m.releaseMu.Unlock()
	close(m.released)
	m.released = make(chan struct{})
}
