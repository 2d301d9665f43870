package monitor

import (
	"time"

	"github.com/Iron-Ham/lockstep/internal/event"
	"github.com/Iron-Ham/lockstep/internal/logging"
	"github.com/Iron-Ham/lockstep/internal/resolution"
)

// Default timings for WaitForLockRelease.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultWaitTimeout  = 5 * time.Minute
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithStateDir enables persistence of the lock table inside dir.
// Without it the monitor keeps its table in memory only.
func WithStateDir(dir string) Option {
	return func(m *Monitor) {
		m.stateDir = dir
	}
}

// WithStateFile overrides the name of the persisted table (default
// "locks.json"). An absolute path is used as is.
func WithStateFile(name string) Option {
	return func(m *Monitor) {
		if name != "" {
			m.stateFile = name
		}
	}
}

// WithChooser sets the collaborator asked for a strategy when an intent does
// not name one.
func WithChooser(c resolution.Chooser) Option {
	return func(m *Monitor) {
		m.chooser = c
	}
}

// WithBus publishes lock and conflict events on bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Monitor) {
		m.bus = bus
	}
}

// WithLogger sets the monitor's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithPollInterval sets how often a waiter rechecks a held path.
func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.pollInterval = d
	}
}

// WithWaitTimeout sets the default wait budget of WaitForLockRelease.
func WithWaitTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.waitTimeout = d
	}
}

// WithExternalWriters tells the monitor that other processes write the same
// state file. The table is reloaded from disk before each mutation and on each
// poll while waiting.
func WithExternalWriters(enabled bool) Option {
	return func(m *Monitor) {
		m.externalWriters = enabled
	}
}

// WithClock overrides the time source used to stamp granted locks.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}
