package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/lockstep/internal/event"
	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/guard"
	"github.com/Iron-Ham/lockstep/internal/monitor"
	"github.com/Iron-Ham/lockstep/internal/styles"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report writes to files that nobody locked",
	Long: `Watch the working tree and report every file that changes on disk while no
write or modify lock covers it. Runs until interrupted.

Ignore patterns come from guard.ignore; the state directory is always ignored.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchRoot string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchRoot, "root", "", "directory to watch (default guard.root)")
}

// freshLookup reloads the table before each lookup so that locks taken by
// other lockstep processes are seen.
type freshLookup struct {
	m *monitor.Monitor
}

func (f freshLookup) CheckLock(path string) (filelock.FileLock, bool) {
	f.m.Refresh()
	return f.m.CheckLock(path)
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	root := watchRoot
	if root == "" {
		root = rt.cfg.Guard.Root
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(rt.workDir, root)
	}

	ignore := append([]string{}, rt.cfg.Guard.Ignore...)
	if rel, err := filepath.Rel(root, rt.stateDir); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		ignore = append(ignore, filepath.ToSlash(rel)+"/**")
	}

	g, err := guard.New(root, freshLookup{rt.monitor},
		guard.WithIgnore(ignore...),
		guard.WithDebounce(rt.cfg.Guard.Debounce),
		guard.WithLogger(rt.logger),
		guard.WithBus(rt.bus),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rt.bus.Subscribe(event.TypeUnguardedWrite, func(e event.Event) {
		ev, ok := e.(event.UnguardedWriteEvent)
		if !ok {
			return
		}
		line := fmt.Sprintf("%s %s %s",
			styles.Muted.Render(ev.Timestamp().Format("15:04:05")),
			styles.Error.Render("unguarded write"),
			ev.Path)
		if ev.Holder != "" {
			line += styles.Muted.Render(" (read-locked by " + ev.Holder + ")")
		}
		fmt.Fprintln(out, line)
	})

	if err := g.Start(); err != nil {
		return err
	}
	defer g.Stop()

	fmt.Fprintf(out, "Watching %s for unguarded writes... (Ctrl+C to stop)\n", g.Root())
	<-cmd.Context().Done()

	if n := len(g.Violations()); n > 0 {
		fmt.Fprintf(out, "%d unguarded write(s) detected\n", n)
	}
	return nil
}
