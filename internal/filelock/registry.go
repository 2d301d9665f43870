package filelock

import (
	"sort"
	"sync"
	"time"
)

// Registry is the authoritative in-memory table of active file locks. It is
// pure decision logic: it performs no I/O and publishes nothing. Persistence,
// waiting and notification belong to the monitor that owns the registry.
type Registry struct {
	mu       sync.RWMutex
	locks    map[string]FileLock // normalized path -> lock
	now      func() time.Time
	handlers []func(FileLock)
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		locks: make(map[string]FileLock),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire attempts to grant op on path to holder.
//
// An unheld path is always granted. A read request against a read-held path
// reports no conflict and re-confirms the existing slot record; the registry
// keeps one record per path and does not count readers. Every other
// combination reports the existing lock as the conflict and grants nothing.
//
// An empty path or an unknown operation is never granted: the detection
// reports a conflict with no blocking lock and the table is left unchanged.
func (r *Registry) Acquire(filePath, holder, taskID string, op Operation) ConflictDetection {
	key := NormalizePath(filePath)
	detection := ConflictDetection{Path: key, Holder: holder}
	if key == "" || !op.Valid() {
		detection.HasConflict = true
		return detection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, held := r.locks[key]
	if !held {
		r.locks[key] = FileLock{
			Path:       key,
			Holder:     holder,
			TaskID:     taskID,
			AcquiredAt: r.now(),
			Operation:  op,
		}
		return detection
	}

	if existing.Operation == OpRead && op == OpRead {
		return detection
	}

	detection.HasConflict = true
	detection.Conflicts = []FileLock{existing}
	return detection
}

// Release removes the lock on path if, and only if, it is held by holder.
// Releasing an unheld path, or a path held by someone else, is a no-op.
// Returns true if a lock was removed.
func (r *Registry) Release(filePath, holder string) bool {
	key := NormalizePath(filePath)

	r.mu.Lock()
	existing, ok := r.locks[key]
	if !ok || existing.Holder != holder {
		r.mu.Unlock()
		return false
	}
	delete(r.locks, key)
	r.mu.Unlock()

	r.notifyReleased(existing)
	return true
}

// ReleaseAll removes every lock owned by holder and leaves all others untouched.
// The released paths are returned sorted.
func (r *Registry) ReleaseAll(holder string) []string {
	r.mu.Lock()
	var released []FileLock
	for key, lock := range r.locks {
		if lock.Holder == holder {
			released = append(released, lock)
			delete(r.locks, key)
		}
	}
	r.mu.Unlock()

	sortLocks(released)
	paths := make([]string, 0, len(released))
	for _, lock := range released {
		paths = append(paths, lock.Path)
		r.notifyReleased(lock)
	}
	return paths
}

// Clear drops every lock, e.g. at the end of a work cycle. Returns the number
// of locks removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	dropped := make([]FileLock, 0, len(r.locks))
	for _, lock := range r.locks {
		dropped = append(dropped, lock)
	}
	r.locks = make(map[string]FileLock)
	r.mu.Unlock()

	sortLocks(dropped)
	for _, lock := range dropped {
		r.notifyReleased(lock)
	}
	return len(dropped)
}

// CheckLock returns the lock currently held on path, if any.
func (r *Registry) CheckLock(filePath string) (FileLock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lock, ok := r.locks[NormalizePath(filePath)]
	return lock, ok
}

// AllLocks returns a snapshot of every lock, sorted by path.
func (r *Registry) AllLocks() []FileLock {
	return r.Snapshot()
}

// LocksByHolder returns a snapshot of the locks owned by holder, sorted by path.
func (r *Registry) LocksByHolder(holder string) []FileLock {
	r.mu.RLock()
	defer r.mu.RUnlock()

	locks := make([]FileLock, 0)
	for _, lock := range r.locks {
		if lock.Holder == holder {
			locks = append(locks, lock)
		}
	}
	sortLocks(locks)
	return locks
}

// Len returns the number of held paths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locks)
}

// Snapshot serializes the whole table for persistence. The slice is sorted by
// path so that persisted files diff cleanly.
func (r *Registry) Snapshot() []FileLock {
	r.mu.RLock()
	defer r.mu.RUnlock()

	locks := make([]FileLock, 0, len(r.locks))
	for _, lock := range r.locks {
		locks = append(locks, lock)
	}
	sortLocks(locks)
	return locks
}

// Restore replaces the table wholesale with locks. Paths are re-normalized;
// when two records collide on one path the later record wins.
func (r *Registry) Restore(locks []FileLock) {
	table := make(map[string]FileLock, len(locks))
	for _, lock := range locks {
		lock.Path = NormalizePath(lock.Path)
		if lock.Path == "" {
			continue
		}
		table[lock.Path] = lock
	}

	r.mu.Lock()
	r.locks = table
	r.mu.Unlock()
}

// WatchReleases registers a handler that is called after a lock leaves the
// table through Release, ReleaseAll or Clear. Handlers run outside the
// registry's lock and may call back into read methods.
func (r *Registry) WatchReleases(handler func(FileLock)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
}

// notifyReleased calls all registered release handlers.
func (r *Registry) notifyReleased(lock FileLock) {
	r.mu.RLock()
	handlers := make([]func(FileLock), len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.RUnlock()

	for _, h := range handlers {
		h(lock)
	}
}

func sortLocks(locks []FileLock) {
	sort.Slice(locks, func(i, j int) bool {
		return locks[i].Path < locks[j].Path
	})
}
