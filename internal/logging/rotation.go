package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation bounds the size of lockstep.log. A long-running watch process can
// log every lock transition of a whole work cycle, so the file is rotated
// once it grows past MaxSizeMB.
type Rotation struct {
	// MaxSizeMB is the size in megabytes at which the file is rotated.
	// Zero disables rotation.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept as lockstep.log.1 (newest)
	// through lockstep.log.N (oldest).
	MaxBackups int
}

// DefaultRotation returns the rotation applied by NewLogger unless overridden.
func DefaultRotation() Rotation {
	return Rotation{MaxSizeMB: 10, MaxBackups: 3}
}

// FileOption configures the file written by NewLogger.
type FileOption func(*Rotation)

// WithRotation overrides the default rotation limits.
func WithRotation(r Rotation) FileOption {
	return func(dst *Rotation) {
		*dst = r
	}
}

// rotatingFile is an append-only file that rotates by size. It is safe for
// concurrent use.
type rotatingFile struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	onError    func(error)

	file *os.File
	size int64
}

func openRotatingFile(path string, r Rotation) (*rotatingFile, error) {
	rf := &rotatingFile{
		path:       path,
		maxBytes:   int64(r.MaxSizeMB) * 1024 * 1024,
		maxBackups: r.MaxBackups,
		onError: func(err error) {
			fmt.Fprintf(os.Stderr, "lockstep: log rotation failed: %v\n", err)
		},
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// open (re)opens the file in append mode. The caller must hold mu or own rf
// exclusively.
func (rf *rotatingFile) open() error {
	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	rf.file = file
	rf.size = info.Size()
	return nil
}

// Write appends p, rotating first if p would push the file past the limit.
// A failed rotation keeps writing to the current file so no entry is lost.
func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, fmt.Errorf("log file %s is closed", rf.path)
	}

	if rf.maxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxBytes {
		if err := rf.rotate(); err != nil {
			rf.onError(err)
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate shifts the backups and starts a fresh file. The caller must hold mu.
func (rf *rotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rf.file = nil

	if rf.maxBackups <= 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			return rf.reopenAfter(err)
		}
		return rf.open()
	}

	_ = os.Remove(rf.backup(rf.maxBackups))
	for i := rf.maxBackups - 1; i >= 1; i-- {
		if _, err := os.Stat(rf.backup(i)); err == nil {
			_ = os.Rename(rf.backup(i), rf.backup(i+1))
		}
	}
	if err := os.Rename(rf.path, rf.backup(1)); err != nil {
		return rf.reopenAfter(err)
	}
	return rf.open()
}

func (rf *rotatingFile) reopenAfter(cause error) error {
	if err := rf.open(); err != nil {
		return fmt.Errorf("rotate %s: %w (reopen: %v)", rf.path, cause, err)
	}
	return fmt.Errorf("rotate %s: %w", rf.path, cause)
}

func (rf *rotatingFile) backup(n int) string {
	return fmt.Sprintf("%s.%d", rf.path, n)
}

// Close syncs and closes the file. Closing twice is a no-op.
func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	if err := rf.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := rf.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rf.file = nil
	return nil
}

// LogFiles returns the active log file in dir followed by any rotated backups,
// oldest first, so that reading them in order replays the log chronologically.
func LogFiles(dir string) []string {
	base := filepath.Join(dir, LogFileName)
	backups, _ := filepath.Glob(base + ".*")

	files := make([]string, 0, len(backups)+1)
	for n := len(backups); n >= 1; n-- {
		p := fmt.Sprintf("%s.%d", base, n)
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	if _, err := os.Stat(base); err == nil {
		files = append(files, base)
	}
	return files
}
