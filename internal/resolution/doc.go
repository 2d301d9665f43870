// Package resolution turns a detected lock conflict into a concrete action.
//
// An [Engine] maps a [filelock.ConflictDetection] and a [Strategy] to a
// [Result]. It owns no lock state: waiting, pausing and cancelling are carried
// out by the monitor and the scheduler that consume the result.
//
// # Strategies
//
//   - [Sequential]: the requester waits for the holder to release, then retries
//   - [Merge]: reserved for a three-way merge; currently handled as [Manual]
//   - [Manual]: both tasks are paused until a human intervenes
//   - [Cancel]: the requester's task is abandoned
//
// When no strategy is given, the engine asks its [Chooser] (usually an
// interactive prompt). A chooser that declines, fails or is absent yields
// [Sequential].
//
// # Basic Usage
//
//	engine := resolution.NewEngine(resolution.WithChooser(chooser))
//	result := engine.Resolve(ctx, det, "")
//	if result.Strategy == resolution.Sequential && result.Success {
//	    // wait for det.Conflicts[0] to be released
//	}
package resolution
