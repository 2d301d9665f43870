package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/lockstep/internal/config"
	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/logging"
	"github.com/Iron-Ham/lockstep/internal/styles"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the lock log",
	Long: `View and filter lockstep.log in the state directory, rotated files
included.

Examples:
  # Show the last 50 entries
  lockstep logs

  # Everything agent-a did or was blocked by
  lockstep logs --holder agent-a -n 0

  # Follow conflicts as they happen
  lockstep logs -f --grep conflict

  # Warnings from the last hour
  lockstep logs --level warn --since 1h`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail   int
	logsFollow bool
	logsLevel  string
	logsSince  string
	logsGrep   string
	logsHolder string
	logsPath   string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsHolder, "holder", "", "Filter by holder, including conflicts it caused")
	logsCmd.Flags().StringVar(&logsPath, "path", "", "Filter by file path")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	stateDir := cfg.Locks.ResolveStateDir(cwd)

	filter, err := buildLogFilter(time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if logsFollow {
		return followLogs(cmd.Context(), out, filepath.Join(stateDir, logging.LogFileName), filter)
	}

	entries, err := logging.ReadLogs(stateDir)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No logs found.")
		fmt.Fprintln(out, "Logs are stored at:", filepath.Join(stateDir, logging.LogFileName))
		return nil
	}
	if err != nil {
		return err
	}

	entries = logging.FilterLogs(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	for _, e := range entries {
		fmt.Fprintln(out, formatLogEntry(e))
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
	}
	return nil
}

func buildLogFilter(now time.Time) (logging.LogFilter, error) {
	filter := logging.LogFilter{
		Holder: logsHolder,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsPath != "" {
		filter.Path = filelock.NormalizePath(logsPath)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = now.Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return filter, fmt.Errorf("invalid grep pattern: %w", err)
		}
		filter.Match = re
	}
	return filter, nil
}

// followLogs prints entries appended to path until ctx is cancelled.
func followLogs(ctx context.Context, out io.Writer, path string, filter logging.LogFilter) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			partial += line
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				continue
			}
		}
		if err != nil {
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(partial + line)
		partial = ""
		if line == "" {
			continue
		}

		entry, err := logging.ParseLogEntry(line)
		if err != nil {
			fmt.Fprintln(out, line)
			continue
		}
		if filter.Matches(entry) {
			fmt.Fprintln(out, formatLogEntry(entry))
		}
	}
}

// levelStyle returns the style for a log level
func levelStyle(level string) lipgloss.Style {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return styles.Muted
	case logging.LevelInfo:
		return lipgloss.NewStyle().Foreground(styles.BlueColor)
	case logging.LevelWarn:
		return styles.Warning
	case logging.LevelError:
		return styles.Error
	default:
		return styles.Text
	}
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(e logging.LogEntry) string {
	var sb strings.Builder

	if !e.Time.IsZero() {
		sb.WriteString(styles.Muted.Render("[" + e.Time.Local().Format("15:04:05.000") + "]"))
		sb.WriteString(" ")
	}
	sb.WriteString(levelStyle(e.Level).Render("[" + strings.ToUpper(e.Level) + "]"))
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	field := func(k, v string) {
		if v == "" {
			return
		}
		sb.WriteString(" ")
		sb.WriteString(styles.Primary.Render(k + "="))
		sb.WriteString(v)
	}
	field("component", e.Component)
	field("holder", e.Holder)
	field("task_id", e.TaskID)
	field("path", e.Path)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(k, fmt.Sprintf("%v", e.Attrs[k]))
	}

	return sb.String()
}
