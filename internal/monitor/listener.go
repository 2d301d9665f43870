package monitor

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/logging"
	"github.com/Iron-Ham/lockstep/internal/resolution"
)

// Listener observes conflicts. Both callbacks are optional.
type Listener struct {
	OnConflictDetected func(filelock.ConflictDetection)
	OnConflictResolved func(resolution.Result)
}

type registeredListener struct {
	id string
	Listener
}

// listenerSet is an ordered list of listeners. Callbacks run synchronously in
// registration order and never under the monitor's mutex.
type listenerSet struct {
	mu     sync.RWMutex
	items  []registeredListener
	nextID uint64
	logger *logging.Logger
}

// AddListener registers l and returns an ID for RemoveListener.
func (m *Monitor) AddListener(l Listener) string {
	return m.listeners.add(l)
}

// RemoveListener deregisters the listener with the given ID.
// Returns true if it was registered.
func (m *Monitor) RemoveListener(id string) bool {
	return m.listeners.remove(id)
}

func (s *listenerSet) add(l Listener) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("listener-%d", s.nextID)
	s.items = append(s.items, registeredListener{id: id, Listener: l})
	return id
}

func (s *listenerSet) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.id == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *listenerSet) snapshot() []registeredListener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]registeredListener(nil), s.items...)
}

func (s *listenerSet) conflictDetected(det filelock.ConflictDetection) {
	for _, item := range s.snapshot() {
		if item.OnConflictDetected == nil {
			continue
		}
		s.safeCall(item.id, func() { item.OnConflictDetected(det) })
	}
}

func (s *listenerSet) conflictResolved(result resolution.Result) {
	for _, item := range s.snapshot() {
		if item.OnConflictResolved == nil {
			continue
		}
		s.safeCall(item.id, func() { item.OnConflictResolved(result) })
	}
}

// safeCall invokes a callback and recovers from any panics.
func (s *listenerSet) safeCall(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("listener panicked",
				"listener", id,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
