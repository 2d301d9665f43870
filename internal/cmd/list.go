package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/styles"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active locks",
	Long: `List the locks in the project's lock table, sorted by path.

Examples:
  lockstep list
  lockstep list --holder agent-a
  lockstep list --match 'internal/**/*.go' --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listHolder string
	listMatch  string
	listFormat string
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listHolder, "holder", "", "only show locks of this holder")
	listCmd.Flags().StringVar(&listMatch, "match", "", "only show paths matching this glob (e.g. 'src/**/*.go')")
	listCmd.Flags().StringVarP(&listFormat, "format", "o", formatTable, "output format: table, json or yaml")
}

func runList(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(listFormat)
	if format != formatTable && format != formatJSON && format != formatYAML {
		return fmt.Errorf("invalid format %q: must be table, json or yaml", listFormat)
	}

	var matcher glob.Glob
	if listMatch != "" {
		var err error
		// Paths are stored normalized, so match against a normalized pattern.
		matcher, err = glob.Compile(strings.ToLower(strings.ReplaceAll(listMatch, `\`, "/")), '/')
		if err != nil {
			return fmt.Errorf("invalid --match pattern: %w", err)
		}
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	var locks []filelock.FileLock
	if listHolder != "" {
		locks = rt.monitor.LocksByHolder(listHolder)
	} else {
		locks = rt.monitor.AllLocks()
	}
	locks = filterLocks(locks, matcher)

	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		return writeJSON(out, locks)
	case formatYAML:
		return writeYAML(out, locks)
	default:
		renderLockTable(out, locks, time.Now())
		return nil
	}
}

func filterLocks(locks []filelock.FileLock, matcher glob.Glob) []filelock.FileLock {
	if matcher == nil {
		return locks
	}
	filtered := make([]filelock.FileLock, 0, len(locks))
	for _, l := range locks {
		if matcher.Match(l.Path) {
			filtered = append(filtered, l)
		}
	}
	return filtered
}

func renderLockTable(w io.Writer, locks []filelock.FileLock, now time.Time) {
	if len(locks) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("No active locks."))
		return
	}

	rows := make([][]string, 0, len(locks))
	for _, l := range locks {
		rows = append(rows, []string{l.Path, string(l.Operation), l.Holder, l.TaskID, formatAge(now.Sub(l.AcquiredAt))})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.BorderColor)).
		BorderColumn(false).
		BorderLeft(false).
		BorderRight(false).
		BorderTop(false).
		BorderBottom(false).
		Headers("PATH", "OP", "HOLDER", "TASK", "AGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			if col == 1 {
				return styles.TableCell.Foreground(styles.OperationColor(rows[row][1]))
			}
			return styles.TableCell
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d lock(s)\n", len(locks))
}

// formatAge renders how long a lock has been held, coarsely.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "-"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
