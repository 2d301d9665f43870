// Package event provides a pub-sub event bus for lock traffic.
//
// The monitor publishes every grant, release and conflict on a [Bus]; the
// guard publishes unguarded writes; the CLI's watch command subscribes to all
// of them. Publishers never know who listens.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Lock lifecycle:
//   - [LockAcquiredEvent], [LockReleasedEvent], [LocksClearedEvent]
//   - [LockTableRestoredEvent]: the persisted table was loaded
//
// Conflicts:
//   - [ConflictDetectedEvent], [ConflictResolvedEvent], [WaitTimedOutEvent]
//
// Guard:
//   - [UnguardedWriteEvent]
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called synchronously
// and protected against panics; a panicking handler does not prevent other
// handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeConflictDetected, func(e event.Event) {
//	    c := e.(event.ConflictDetectedEvent)
//	    log.Printf("%s blocked on %s", c.Detection.Holder, c.Detection.Path)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
package event
