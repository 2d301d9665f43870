// Package monitor is the operation monitor: the one component callers talk to
// when they want to touch a shared file.
//
// A [Monitor] owns a [filelock.Registry] and a [resolution.Engine]. A call to
// [Monitor.RequestFileOperation] acquires the lock, and on conflict notifies
// listeners, resolves the conflict and, for the sequential strategy, blocks
// until the path is free and retries once. Every mutation is written to a JSON
// file in the state directory (temp file plus rename, guarded by flock(2)) so
// the table survives a restart.
//
// # Basic Usage
//
//	mon, err := monitor.New(monitor.WithStateDir(dir), monitor.WithBus(bus))
//	if err != nil {
//	    return err
//	}
//
//	det, err := mon.RequestFileOperation(ctx, monitor.Intent{
//	    Path:      "src/x.go",
//	    Holder:    "agent-b",
//	    TaskID:    "task-7",
//	    Operation: filelock.OpWrite,
//	    Strategy:  resolution.Sequential,
//	}, true)
//	if errors.IsTimeout(err) {
//	    // agent-a never let go
//	}
//	defer mon.ReleaseAllFileOperations("agent-b")
//
// # Thread Safety
//
// All methods are safe for concurrent use. Mutations and their persistence are
// serialized by one mutex; waiting holds no lock. Listener callbacks and bus
// events are delivered synchronously, outside that mutex, in registration
// order.
package monitor
