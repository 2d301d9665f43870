package event

import (
	"time"

	"github.com/Iron-Ham/lockstep/internal/filelock"
)

// Event types published by the monitor and the guard.
const (
	TypeLockAcquired      = "lock.acquired"
	TypeLockReleased      = "lock.released"
	TypeLocksCleared      = "lock.cleared"
	TypeConflictDetected  = "conflict.detected"
	TypeConflictResolved  = "conflict.resolved"
	TypeWaitTimedOut      = "lock.wait_timeout"
	TypeUnguardedWrite    = "guard.unguarded_write"
	TypeLockTableRestored = "lock.restored"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "lock.acquired").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Lock Lifecycle Events
// -----------------------------------------------------------------------------

// LockAcquiredEvent is emitted after a lock is granted and persisted.
type LockAcquiredEvent struct {
	baseEvent
	Lock filelock.FileLock
}

// NewLockAcquiredEvent creates a LockAcquiredEvent.
func NewLockAcquiredEvent(lock filelock.FileLock) LockAcquiredEvent {
	return LockAcquiredEvent{
		baseEvent: newBaseEvent(TypeLockAcquired),
		Lock:      lock,
	}
}

// LockReleasedEvent is emitted when a lock leaves the table.
type LockReleasedEvent struct {
	baseEvent
	Lock filelock.FileLock
}

// NewLockReleasedEvent creates a LockReleasedEvent.
func NewLockReleasedEvent(lock filelock.FileLock) LockReleasedEvent {
	return LockReleasedEvent{
		baseEvent: newBaseEvent(TypeLockReleased),
		Lock:      lock,
	}
}

// LocksClearedEvent is emitted when the whole table is reset at the end of a
// work cycle.
type LocksClearedEvent struct {
	baseEvent
	Count int // Number of locks dropped
}

// NewLocksClearedEvent creates a LocksClearedEvent.
func NewLocksClearedEvent(count int) LocksClearedEvent {
	return LocksClearedEvent{
		baseEvent: newBaseEvent(TypeLocksCleared),
		Count:     count,
	}
}

// LockTableRestoredEvent is emitted when the table is loaded from disk.
type LockTableRestoredEvent struct {
	baseEvent
	Count int
	File  string
}

// NewLockTableRestoredEvent creates a LockTableRestoredEvent.
func NewLockTableRestoredEvent(count int, file string) LockTableRestoredEvent {
	return LockTableRestoredEvent{
		baseEvent: newBaseEvent(TypeLockTableRestored),
		Count:     count,
		File:      file,
	}
}

// -----------------------------------------------------------------------------
// Conflict Events
// -----------------------------------------------------------------------------

// ConflictDetectedEvent is emitted when a request collides with a held lock.
type ConflictDetectedEvent struct {
	baseEvent
	Detection filelock.ConflictDetection
	TaskID    string
	Operation filelock.Operation
}

// NewConflictDetectedEvent creates a ConflictDetectedEvent.
func NewConflictDetectedEvent(det filelock.ConflictDetection, taskID string, op filelock.Operation) ConflictDetectedEvent {
	return ConflictDetectedEvent{
		baseEvent: newBaseEvent(TypeConflictDetected),
		Detection: det,
		TaskID:    taskID,
		Operation: op,
	}
}

// ConflictResolvedEvent is emitted after the resolution engine decided an action.
type ConflictResolvedEvent struct {
	baseEvent
	Path     string
	Holder   string
	Strategy string
	Success  bool
	Action   string
	Err      error
}

// NewConflictResolvedEvent creates a ConflictResolvedEvent.
func NewConflictResolvedEvent(path, holder, strategy string, success bool, action string, err error) ConflictResolvedEvent {
	return ConflictResolvedEvent{
		baseEvent: newBaseEvent(TypeConflictResolved),
		Path:      path,
		Holder:    holder,
		Strategy:  strategy,
		Success:   success,
		Action:    action,
		Err:       err,
	}
}

// WaitTimedOutEvent is emitted when a waiter gives up on a held path.
type WaitTimedOutEvent struct {
	baseEvent
	Path    string
	Timeout time.Duration
}

// NewWaitTimedOutEvent creates a WaitTimedOutEvent.
func NewWaitTimedOutEvent(path string, timeout time.Duration) WaitTimedOutEvent {
	return WaitTimedOutEvent{
		baseEvent: newBaseEvent(TypeWaitTimedOut),
		Path:      path,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------
// Guard Events
// -----------------------------------------------------------------------------

// UnguardedWriteEvent is emitted by the guard when a file changes on disk
// while no write or modify lock covers it.
type UnguardedWriteEvent struct {
	baseEvent
	Path   string
	Holder string // holder of a read lock on the path, if any
}

// NewUnguardedWriteEvent creates an UnguardedWriteEvent.
func NewUnguardedWriteEvent(path, holder string) UnguardedWriteEvent {
	return UnguardedWriteEvent{
		baseEvent: newBaseEvent(TypeUnguardedWrite),
		Path:      path,
		Holder:    holder,
	}
}
