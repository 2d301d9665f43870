package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Iron-Ham/lockstep/internal/errors"
	"github.com/Iron-Ham/lockstep/internal/event"
	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/logging"
	"github.com/Iron-Ham/lockstep/internal/resolution"
)

// Intent announces that a holder is about to touch a file.
type Intent struct {
	Path      string
	Holder    string
	TaskID    string
	Operation filelock.Operation

	// Strategy applied if the request conflicts. Empty asks the chooser.
	Strategy resolution.Strategy
}

// Validate reports whether the intent can be submitted.
func (i Intent) Validate() error {
	if filelock.NormalizePath(i.Path) == "" {
		return errors.NewValidationError("path is required").
			WithField("path").WithCause(errors.ErrInvalidPath)
	}
	if i.Holder == "" {
		return errors.NewValidationError("holder is required").
			WithField("holder").WithCause(errors.ErrMissingHolder)
	}
	if !i.Operation.Valid() {
		return errors.NewValidationError("unsupported operation").
			WithField("operation").WithValue(string(i.Operation)).WithCause(errors.ErrInvalidOperation)
	}
	return nil
}

// Monitor is the entry point for lock traffic. It composes a filelock.Registry
// and a resolution.Engine into one request/release lifecycle, mirrors the
// table to disk and notifies listeners.
type Monitor struct {
	// mu serializes every registry mutation together with its persistence.
	mu sync.Mutex

	registry *filelock.Registry
	engine   *resolution.Engine
	store    *store // nil when persistence is disabled
	bus      *event.Bus
	logger   *logging.Logger

	stateDir        string
	stateFile       string
	chooser         resolution.Chooser
	pollInterval    time.Duration
	waitTimeout     time.Duration
	externalWriters bool
	now             func() time.Time
	seen            stamp // last version of the state file read or written

	releaseMu sync.Mutex
	released  chan struct{} // closed and replaced on every release

	listeners listenerSet

	afterWait func() // test hook, runs between a sequential wait and its retry
}

// New creates a Monitor. When a state directory is configured and holds a
// persisted table, the table is loaded; a missing file starts empty, and an
// unreadable or corrupt file is logged and also starts empty.
func New(opts ...Option) (*Monitor, error) {
	m := &Monitor{
		stateFile:    DefaultStateFile,
		pollInterval: DefaultPollInterval,
		waitTimeout:  DefaultWaitTimeout,
		logger:       logging.NopLogger(),
		now:          time.Now,
		released:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.pollInterval <= 0 {
		return nil, errors.NewValidationError("poll interval must be positive").
			WithField("poll_interval").WithValue(m.pollInterval)
	}
	if m.waitTimeout <= 0 {
		return nil, errors.NewValidationError("wait timeout must be positive").
			WithField("wait_timeout").WithValue(m.waitTimeout)
	}

	m.logger = m.logger.WithComponent("monitor")
	m.registry = filelock.NewRegistry(filelock.WithClock(m.now))
	m.registry.WatchReleases(m.signalRelease)
	m.engine = resolution.NewEngine(
		resolution.WithChooser(m.chooser),
		resolution.WithLogger(m.logger),
	)
	m.listeners.logger = m.logger

	if m.stateDir != "" || filepath.IsAbs(m.stateFile) {
		m.store = newStore(m.stateDir, m.stateFile)
		if err := os.MkdirAll(filepath.Dir(m.store.path), 0755); err != nil {
			return nil, errors.Wrap(err, "create state directory")
		}
		m.loadInitial()
	}

	return m, nil
}

// loadInitial restores the persisted table. Failures are never fatal.
func (m *Monitor) loadInitial() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.lock(m.logBusy); err != nil {
		m.logger.Warn("could not lock state file, starting with an empty table", "error", err)
		return
	}
	defer m.store.unlock()

	st, exists := m.store.current()
	if !exists {
		return
	}
	locks, err := m.store.read()
	if err != nil {
		m.logger.Warn("could not load lock table, starting with an empty table",
			"file", m.store.path,
			"error", err)
		return
	}
	m.seen = st
	m.registry.Restore(locks)
	m.logger.Info("lock table restored", "file", m.store.path, "locks", m.registry.Len())
	m.publish(event.NewLockTableRestoredEvent(m.registry.Len(), m.store.path))
}

// RequestFileOperation asks for the lock described by intent.
//
// A granted lock is persisted and returned as a detection without conflict.
// On conflict, listeners are told; without autoResolve the conflict is
// returned as is. With autoResolve the conflict is resolved; a successful
// sequential resolution waits for the path to be released and retries exactly
// once, without further resolution. Any other strategy returns the original
// conflict for the scheduler to act on.
//
// The error is non-nil when the intent is invalid, when the wait fails (for
// example a *errors.TimeoutError), or when a granted lock could not be
// persisted; in the last case the grant stands.
func (m *Monitor) RequestFileOperation(ctx context.Context, intent Intent, autoResolve bool) (filelock.ConflictDetection, error) {
	if err := intent.Validate(); err != nil {
		return filelock.ConflictDetection{}, err
	}

	log := m.logger.WithHolder(intent.Holder).WithTask(intent.TaskID)
	resolve := autoResolve
	for {
		det, err := m.acquire(intent)
		if !det.HasConflict {
			return det, err
		}

		log.WithPath(det.Path).Info("lock conflict",
			"operation", string(intent.Operation),
			"blocked_by", blockerHolder(det))
		m.publish(event.NewConflictDetectedEvent(det, intent.TaskID, intent.Operation))
		m.listeners.conflictDetected(det)

		if !resolve {
			return det, nil
		}
		resolve = false

		result := m.engine.Resolve(ctx, det, intent.Strategy)
		m.publish(event.NewConflictResolvedEvent(det.Path, intent.Holder,
			string(result.Strategy), result.Success, result.Action, result.Err))
		m.listeners.conflictResolved(result)

		if result.Strategy != resolution.Sequential || !result.Success {
			return det, nil
		}
		if err := m.WaitForLockRelease(ctx, det.Path, 0); err != nil {
			return det, errors.NewLockError("wait for release", err).
				WithPath(det.Path).WithHolder(intent.Holder).WithTaskID(intent.TaskID)
		}
		if m.afterWait != nil {
			m.afterWait()
		}
	}
}

// acquire runs one registry acquisition and persists a grant.
func (m *Monitor) acquire(intent Intent) (filelock.ConflictDetection, error) {
	var (
		det     filelock.ConflictDetection
		granted filelock.FileLock
		shared  bool
	)
	err := m.commit(func() bool {
		_, held := m.registry.CheckLock(intent.Path)
		det = m.registry.Acquire(intent.Path, intent.Holder, intent.TaskID, intent.Operation)
		if det.HasConflict {
			return false
		}
		if held {
			// read on a read-held slot: the existing record stands
			shared = true
			return false
		}
		granted, _ = m.registry.CheckLock(det.Path)
		return true
	})

	switch {
	case det.HasConflict:
	case shared:
		m.logger.WithHolder(intent.Holder).WithPath(det.Path).Debug("read shares existing slot")
	default:
		m.logger.WithHolder(granted.Holder).WithTask(granted.TaskID).WithPath(granted.Path).
			Debug("lock granted", "operation", string(granted.Operation))
		m.publish(event.NewLockAcquiredEvent(granted))
	}
	return det, err
}

// ReleaseFileOperation releases holder's lock on path and persists the table.
// It reports whether a lock was removed; releasing a path that holder does not
// hold is a no-op.
func (m *Monitor) ReleaseFileOperation(path, holder string) (bool, error) {
	var (
		lock     filelock.FileLock
		released bool
	)
	err := m.commit(func() bool {
		lock, _ = m.registry.CheckLock(path)
		released = m.registry.Release(path, holder)
		return released
	})
	if released {
		m.logger.WithHolder(holder).WithPath(lock.Path).Debug("lock released")
		m.publish(event.NewLockReleasedEvent(lock))
	}
	return released, err
}

// ReleaseAllFileOperations releases every lock owned by holder, e.g. when its
// task completes or fails. Returns the released paths.
func (m *Monitor) ReleaseAllFileOperations(holder string) ([]string, error) {
	var (
		locks []filelock.FileLock
		paths []string
	)
	err := m.commit(func() bool {
		locks = m.registry.LocksByHolder(holder)
		paths = m.registry.ReleaseAll(holder)
		return len(paths) > 0
	})
	if len(paths) > 0 {
		m.logger.WithHolder(holder).Info("released all locks for holder", "count", len(paths))
	}
	for _, lock := range locks {
		m.publish(event.NewLockReleasedEvent(lock))
	}
	return paths, err
}

// ClearAllFileOperations drops every lock, e.g. at the end of a work cycle.
// The persisted table is rewritten even when it was already empty.
func (m *Monitor) ClearAllFileOperations() (int, error) {
	var n int
	err := m.commit(func() bool {
		n = m.registry.Clear()
		return true
	})
	m.logger.Info("cleared all locks", "count", n)
	m.publish(event.NewLocksClearedEvent(n))
	return n, err
}

// CheckLock returns the lock held on path, if any.
func (m *Monitor) CheckLock(path string) (filelock.FileLock, bool) {
	return m.registry.CheckLock(path)
}

// AllLocks returns a sorted snapshot of every lock.
func (m *Monitor) AllLocks() []filelock.FileLock {
	return m.registry.AllLocks()
}

// LocksByHolder returns a sorted snapshot of holder's locks.
func (m *Monitor) LocksByHolder(holder string) []filelock.FileLock {
	return m.registry.LocksByHolder(holder)
}

// StateFile returns the path of the persisted table, or "" when the monitor
// keeps its table in memory only.
func (m *Monitor) StateFile() string {
	if m.store == nil {
		return ""
	}
	return m.store.path
}

// Reload re-reads the persisted table and replaces the in-memory one. A
// missing file empties the table; a corrupt file is reported and leaves the
// table untouched.
func (m *Monitor) Reload() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.lock(m.logBusy); err != nil {
		return err
	}
	defer m.store.unlock()
	return m.reloadLocked(true)
}

// commit applies fn to the registry and, if fn reports a change, writes the
// table to disk. Both happen under m.mu and the state-directory flock.
func (m *Monitor) commit(fn func() (changed bool)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		fn()
		return nil
	}

	if err := m.store.lock(m.logBusy); err != nil {
		fn()
		m.logFailure("could not lock state file", err)
		return err
	}
	defer m.store.unlock()

	if m.externalWriters {
		if err := m.reloadLocked(false); err != nil {
			m.logger.Warn("could not reload lock table", "error", err)
		}
	}

	if !fn() {
		return nil
	}

	if err := m.store.write(m.registry.Snapshot()); err != nil {
		m.logFailure("could not persist lock table", err, "file", m.store.path)
		return err
	}
	if st, ok := m.store.current(); ok {
		m.seen = st
	}
	return nil
}

// reloadLocked replaces the table with the file's contents. Unless force is
// set, an unchanged file is skipped. Callers hold m.mu and the flock.
func (m *Monitor) reloadLocked(force bool) error {
	st, _ := m.store.current()
	if !force && st == m.seen {
		return nil
	}

	locks, err := m.store.read()
	if err != nil {
		return err
	}

	before := m.registry.Len()
	m.registry.Restore(locks)
	m.seen = st
	if m.registry.Len() < before {
		m.broadcastRelease()
	}
	return nil
}

// Refresh reloads the table if another process changed the state file since
// it was last read or written. It is a no-op unless the monitor was created
// WithExternalWriters.
func (m *Monitor) Refresh() {
	if m.store == nil || !m.externalWriters {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.lock(m.logBusy); err != nil {
		m.logger.Warn("could not lock state file", "error", err)
		return
	}
	defer m.store.unlock()

	if err := m.reloadLocked(false); err != nil {
		m.logger.Warn("could not reload lock table", "error", err)
	}
}

// logFailure logs err at a level matching its severity.
func (m *Monitor) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.GetSeverity(err) >= errors.SeverityError {
		m.logger.Error(msg, args...)
		return
	}
	m.logger.Warn(msg, args...)
}

func (m *Monitor) logBusy() {
	m.logger.Debug("state file locked by another process, waiting")
}

func (m *Monitor) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

func blockerHolder(det filelock.ConflictDetection) string {
	if blocker, ok := det.Blocker(); ok {
		return blocker.Holder
	}
	return ""
}
