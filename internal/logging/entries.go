package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of lockstep.log.
type LogEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	Holder    string         `json:"holder,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Path      string         `json:"path,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects entries. Zero fields match everything; set fields are
// combined with AND.
type LogFilter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	Level     string
	Since     time.Time
	Holder    string
	Path      string
	Component string
	// Match is applied to the message and every attribute value.
	Match *regexp.Regexp
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadLogs parses the log files of a state directory, rotated backups
// included, and returns the entries in chronological order. Lines that are
// not JSON are kept as INFO entries whose message is the raw line.
func ReadLogs(dir string) ([]LogEntry, error) {
	files := LogFiles(dir)
	if len(files) == 0 {
		return nil, fmt.Errorf("no log file in %s: %w", dir, os.ErrNotExist)
	}

	var entries []LogEntry
	for _, path := range files {
		fileEntries, err := readLogFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := ParseLogEntry(line)
		if err != nil {
			entry = LogEntry{Level: LevelInfo, Message: line}
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file %s: %w", path, err)
	}
	return entries, nil
}

// ParseLogEntry parses one JSON log line.
func ParseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for k, v := range raw {
		s, isString := v.(string)
		switch {
		case k == "time" && isString:
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				entry.Time = t
			}
		case k == "level" && isString:
			entry.Level = s
		case k == "msg" && isString:
			entry.Message = s
		case k == "component" && isString:
			entry.Component = s
		case k == "holder" && isString:
			entry.Holder = s
		case k == "task_id" && isString:
			entry.TaskID = s
		case k == "path" && isString:
			entry.Path = s
		default:
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter, preserving order.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	filtered := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		if filter.Matches(entry) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// Matches reports whether entry passes every criterion of f.
func (f LogFilter) Matches(entry LogEntry) bool {
	if f.Level != "" {
		want, ok := levelOrder[strings.ToUpper(f.Level)]
		got, entryOk := levelOrder[strings.ToUpper(entry.Level)]
		if ok && entryOk && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && entry.Time.Before(f.Since) {
		return false
	}
	if f.Holder != "" && entry.Holder != f.Holder && fmt.Sprint(entry.Attrs["blocked_by"]) != f.Holder {
		return false
	}
	if f.Path != "" && entry.Path != f.Path {
		return false
	}
	if f.Component != "" && entry.Component != f.Component {
		return false
	}
	if f.Match != nil && !f.Match.MatchString(entry.searchText()) {
		return false
	}
	return true
}

func (e LogEntry) searchText() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	for _, v := range []string{e.Holder, e.TaskID, e.Path} {
		if v != "" {
			sb.WriteString(" ")
			sb.WriteString(v)
		}
	}
	for _, v := range e.Attrs {
		fmt.Fprintf(&sb, " %v", v)
	}
	return sb.String()
}
