// Package filelock tracks which file paths are held, by whom, and for what kind
// of access.
//
// When several agents execute tasks against one working tree, two of them may
// try to edit the same file at once. The [Registry] is the in-memory table that
// decides whether a requested access is compatible with what is already held.
// It performs no I/O; the monitor package wraps it with persistence, waiting
// and notification.
//
// # Compatibility
//
// Paths are normalized with [NormalizePath] (case folded, forward slashes) so
// "SRC\X.go" and "src/x.go" address the same slot. Each slot holds at most one
// [FileLock]:
//
//   - an empty slot is granted to any request
//   - read on a read-held slot succeeds without stacking a second record
//   - everything else is a conflict, reported as a [ConflictDetection] value
//
// # Basic Usage
//
//	reg := filelock.NewRegistry()
//
//	det := reg.Acquire("src/x.go", "agent-a", "task-1", filelock.OpWrite)
//	if det.HasConflict {
//	    blocker, _ := det.Blocker()
//	    fmt.Println("held by", blocker.Holder)
//	}
//
//	reg.Release("src/x.go", "agent-a")
//	reg.ReleaseAll("agent-a")
//
// # Thread Safety
//
// All [Registry] methods are safe for concurrent use via an internal
// sync.RWMutex. Callers that need an acquire and its persistence to be atomic
// (the monitor) serialize on their own mutex as well.
package filelock
