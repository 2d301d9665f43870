package filelock

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Iron-Ham/lockstep/internal/errors"
)

// Operation is the kind of access a holder requests on a file.
type Operation string

const (
	// OpRead is shared access. Any number of reads may share a path.
	OpRead Operation = "read"

	// OpWrite is exclusive access to create or overwrite a file.
	OpWrite Operation = "write"

	// OpModify is exclusive access to edit a file in place.
	OpModify Operation = "modify"
)

// Operations returns every valid operation kind.
func Operations() []Operation {
	return []Operation{OpRead, OpWrite, OpModify}
}

// ParseOperation converts a case-insensitive name into an Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidOperation, s)
	}
	return op, nil
}

// Valid reports whether op is one of read, write or modify.
func (op Operation) Valid() bool {
	switch op {
	case OpRead, OpWrite, OpModify:
		return true
	}
	return false
}

// Exclusive reports whether op excludes every other lock on the same path.
func (op Operation) Exclusive() bool {
	return op == OpWrite || op == OpModify
}

// FileLock is one outstanding claim on a file. Locks are never mutated once
// granted; changing the access kind requires a release and a new acquire.
type FileLock struct {
	Path       string    `json:"path" yaml:"path"`
	Holder     string    `json:"holder" yaml:"holder"`
	TaskID     string    `json:"taskId" yaml:"taskId"`
	AcquiredAt time.Time `json:"acquiredAt" yaml:"acquiredAt"` // observability only
	Operation  Operation `json:"operation" yaml:"operation"`
}

// ConflictDetection is the outcome of an acquisition attempt. A conflict is a
// value, not an error: callers inspect HasConflict and the conflicting locks.
type ConflictDetection struct {
	HasConflict bool       `json:"hasConflict" yaml:"hasConflict"`
	Conflicts   []FileLock `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Path        string     `json:"path" yaml:"path"`
	Holder      string     `json:"holder" yaml:"holder"`
}

// Blocker returns the lock that caused the conflict, if any.
func (c ConflictDetection) Blocker() (FileLock, bool) {
	if !c.HasConflict || len(c.Conflicts) == 0 {
		return FileLock{}, false
	}
	return c.Conflicts[0], true
}

// NormalizePath maps a file path onto the registry key space: backslashes
// become forward slashes, the path is cleaned and case is folded. Two paths
// differing only by case or separator style normalize identically.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean(p)
	return strings.ToLower(p)
}
