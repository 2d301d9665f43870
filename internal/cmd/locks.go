package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/lockstep/internal/errors"
	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/monitor"
	"github.com/Iron-Ham/lockstep/internal/resolution"
	"github.com/Iron-Ham/lockstep/internal/styles"
)

// ErrConflict is returned by commands whose request ended in an unresolved
// conflict. main maps it to exit status 2.
var ErrConflict = errors.New("lock conflict")

var acquireCmd = &cobra.Command{
	Use:   "acquire <path>",
	Short: "Request a read, write or modify lock on a file",
	Long: `Request a lock on a file before touching it.

A read lock is shared with other readers. Write and modify locks are exclusive.
When the file is held incompatibly the conflict is resolved with --strategy, the
configured default strategy, or an interactive prompt:

  sequential  wait for the holder to release, then retry once
  merge       treated as manual
  manual      pause both agents until a human intervenes
  cancel      cancel the requesting task

Exit status is 0 when the lock is granted, 2 on an unresolved conflict and 3
when a sequential wait timed out.

Examples:
  lockstep acquire src/main.go --holder agent-a --task build --op write
  lockstep acquire README.md --holder agent-b --op read --no-resolve`,
	Args: cobra.ExactArgs(1),
	RunE: runAcquire,
}

var releaseCmd = &cobra.Command{
	Use:   "release <path>...",
	Short: "Release locks held by a holder",
	Long: `Release the holder's locks on the given paths. Paths held by someone else,
or not held at all, are left alone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRelease,
}

var releaseAllCmd = &cobra.Command{
	Use:   "release-all",
	Short: "Release every lock held by a holder",
	Args:  cobra.NoArgs,
	RunE:  runReleaseAll,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every lock, e.g. at the end of a work cycle",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Show the lock currently held on a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var waitCmd = &cobra.Command{
	Use:   "wait <path>",
	Short: "Block until a file is released",
	Long: `Block until nobody holds a lock on the path. Returns immediately when the
path is unheld and fails once --timeout (default locks.wait_timeout) elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: runWait,
}

var (
	lockHolder     string
	lockTask       string
	lockOperation  string
	lockStrategy   string
	lockNoResolve  bool
	lockJSON       bool
	waitTimeoutArg string
)

func init() {
	rootCmd.AddCommand(acquireCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(releaseAllCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(waitCmd)

	for _, c := range []*cobra.Command{acquireCmd, releaseCmd, releaseAllCmd} {
		c.Flags().StringVar(&lockHolder, "holder", "", "agent or process holding the lock (required)")
		_ = c.MarkFlagRequired("holder")
	}

	acquireCmd.Flags().StringVar(&lockTask, "task", "", "task the lock is taken for")
	acquireCmd.Flags().StringVar(&lockOperation, "op", string(filelock.OpWrite), "operation: read, write or modify")
	acquireCmd.Flags().StringVar(&lockStrategy, "strategy", "", "resolution strategy on conflict: "+strategyNames())
	acquireCmd.Flags().BoolVar(&lockNoResolve, "no-resolve", false, "report a conflict without resolving it")
	acquireCmd.Flags().BoolVar(&lockJSON, "json", false, "print the detection as JSON")

	checkCmd.Flags().BoolVar(&lockJSON, "json", false, "print the lock as JSON")

	waitCmd.Flags().StringVar(&waitTimeoutArg, "timeout", "", "maximum time to wait, e.g. 30s (default locks.wait_timeout)")
}

func strategyNames() string {
	names := make([]string, 0, len(resolution.Strategies()))
	for _, s := range resolution.Strategies() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	op, err := filelock.ParseOperation(lockOperation)
	if err != nil {
		return err
	}

	var strategy resolution.Strategy
	if lockStrategy != "" {
		if strategy, err = resolution.ParseStrategy(lockStrategy); err != nil {
			return err
		}
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	intent := monitor.Intent{
		Path:      args[0],
		Holder:    lockHolder,
		TaskID:    lockTask,
		Operation: op,
		Strategy:  strategy,
	}

	var resolved *resolution.Result
	rt.monitor.AddListener(monitor.Listener{
		OnConflictResolved: func(r resolution.Result) { resolved = &r },
	})

	det, err := rt.monitor.RequestFileOperation(cmd.Context(), intent, !lockNoResolve)
	out := cmd.OutOrStdout()

	if lockJSON {
		if encErr := writeJSON(out, det); encErr != nil {
			return encErr
		}
	} else {
		printDetection(out, det, op, resolved)
	}

	if err != nil {
		return err
	}
	if det.HasConflict {
		return ErrConflict
	}
	return nil
}

func printDetection(w io.Writer, det filelock.ConflictDetection, op filelock.Operation, resolved *resolution.Result) {
	if !det.HasConflict {
		fmt.Fprintf(w, "%s %s lock on %s for %s\n",
			styles.Secondary.Render("granted"), op, det.Path, det.Holder)
		return
	}

	blocker, _ := det.Blocker()
	fmt.Fprintf(w, "%s %s is held by %s for %s (task %s)\n",
		styles.Error.Render("conflict"), det.Path, blocker.Holder, blocker.Operation, blocker.TaskID)
	if resolved != nil {
		fmt.Fprintf(w, "%s %s\n",
			styles.Warning.Render(string(resolved.Strategy)+":"), resolved.Action)
	}
}

func runRelease(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	for _, p := range args {
		released, err := rt.monitor.ReleaseFileOperation(p, lockHolder)
		if err != nil {
			return err
		}
		if released {
			fmt.Fprintf(out, "%s %s\n", styles.Secondary.Render("released"), filelock.NormalizePath(p))
		} else {
			fmt.Fprintf(out, "%s %s is not held by %s\n", styles.Muted.Render("skipped"), filelock.NormalizePath(p), lockHolder)
		}
	}
	return nil
}

func runReleaseAll(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	paths, err := rt.monitor.ReleaseAllFileOperations(lockHolder)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range paths {
		fmt.Fprintf(out, "%s %s\n", styles.Secondary.Render("released"), p)
	}
	fmt.Fprintf(out, "%d lock(s) released for %s\n", len(paths), lockHolder)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := rt.monitor.ClearAllFileOperations()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d lock(s)\n", n)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	lock, held := rt.monitor.CheckLock(args[0])
	out := cmd.OutOrStdout()

	if lockJSON {
		if !held {
			_, err := fmt.Fprintln(out, "null")
			return err
		}
		return writeJSON(out, lock)
	}

	if !held {
		fmt.Fprintf(out, "%s is %s\n", filelock.NormalizePath(args[0]), styles.Secondary.Render("unlocked"))
		return nil
	}
	fmt.Fprintf(out, "%s is held by %s for %s (task %s) since %s\n",
		lock.Path, lock.Holder, styles.Warning.Render(string(lock.Operation)),
		lock.TaskID, lock.AcquiredAt.Format("15:04:05"))
	return nil
}

func runWait(cmd *cobra.Command, args []string) error {
	timeout, err := parseTimeout(waitTimeoutArg)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.monitor.WaitForLockRelease(cmd.Context(), args[0], timeout); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is free\n", filelock.NormalizePath(args[0]))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTimeout accepts a Go duration or, like the config file, a bare number
// of milliseconds. Empty means the configured default.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if ms, msErr := strconv.ParseInt(s, 10, 64); msErr == nil {
		d, err = time.Duration(ms)*time.Millisecond, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timeout %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s)
	}
	return d, nil
}
