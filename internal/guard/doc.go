// Package guard watches a working tree and flags writes that happen without a
// lock.
//
// Agents are expected to take a write or modify lock through the monitor
// before touching a file. A [Guard] observes the tree with fsnotify and, for
// every file that changes, asks its [LockLookup] whether an exclusive lock
// covers the path. If none does, the change is recorded as a [Violation],
// logged, published on the event bus and passed to the OnViolation callback.
//
// Directories matching an ignore pattern (gobwas/glob syntax, relative to the
// root, for example ".git/**") are not watched at all.
//
//	g, err := guard.New(".", mon, guard.WithIgnore(".git/**", ".lockstep/**"))
//	if err != nil {
//	    return err
//	}
//	g.OnViolation(func(v guard.Violation) { fmt.Println("unguarded:", v.Path) })
//	if err := g.Start(); err != nil {
//	    return err
//	}
//	defer g.Stop()
package guard
