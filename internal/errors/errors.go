// Package errors provides centralized error definitions and error handling utilities
// for lockstep. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from specific subsystems:
//   - LockError: failures while granting, releasing or waiting on a file lock
//   - PersistenceError: read or write failures against the lock-table file
//   - ResolutionError: conflict resolution could not decide an action
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// A conflict between two holders is never an error. It is returned as a
// filelock.ConflictDetection value and flows through normal control paths.
//
// # Usage
//
//	err := errors.NewPersistenceError("write", "/state/locks.json", baseErr)
//
//	if errors.Is(err, errors.ErrPersistence) { ... }
//
//	var timeoutErr *errors.TimeoutError
//	if errors.As(err, &timeoutErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lock-related sentinel errors
var (
	// ErrInvalidOperation indicates an access kind outside read/write/modify.
	ErrInvalidOperation = New("invalid lock operation")
	// ErrInvalidPath indicates an empty or unusable file path.
	ErrInvalidPath = New("invalid lock path")
	// ErrMissingHolder indicates a lock request without a holder identity.
	ErrMissingHolder = New("lock holder is required")
)

// Resolution-related sentinel errors
var (
	// ErrUnknownStrategy indicates a resolution strategy outside the enumeration.
	ErrUnknownStrategy = New("unknown resolution strategy")
)

// Persistence-related sentinel errors
var (
	// ErrPersistence indicates the lock table could not be read or written.
	ErrPersistence = New("lock table persistence failed")
	// ErrCorruptState indicates the persisted lock table could not be parsed.
	ErrCorruptState = New("lock table file is corrupted")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LockstepError is the base interface for all lockstep errors.
type LockstepError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LockError represents a failure tied to one file lock.
//
// Example:
//
//	err := errors.NewLockError("acquire failed", errors.ErrInvalidOperation).
//		WithPath("src/x.go").WithHolder("agent-a")
//	fmt.Println(err) // "lock error [path=src/x.go, holder=agent-a]: acquire failed: invalid lock operation"
type LockError struct {
	baseError
	Path   string
	Holder string
	TaskID string
}

// NewLockError creates a new LockError. Severity and retryability follow
// cause, so a wrapped timeout stays retryable.
func NewLockError(message string, cause error) *LockError {
	severity := SeverityError
	if cause != nil {
		severity = GetSeverity(cause)
	}
	return &LockError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  severity,
			retryable: IsRetryable(cause),
		},
	}
}

// WithPath adds the normalized file path to the error context.
func (e *LockError) WithPath(path string) *LockError {
	e.Path = path
	return e
}

// WithHolder adds the holder identity to the error context.
func (e *LockError) WithHolder(holder string) *LockError {
	e.Holder = holder
	return e
}

// WithTaskID adds the task identity to the error context.
func (e *LockError) WithTaskID(id string) *LockError {
	e.TaskID = id
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.Holder != "" {
		parts = append(parts, fmt.Sprintf("holder=%s", e.Holder))
	}
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	return formatWithContext("lock error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PersistenceError represents a read or write failure against the persisted
// lock table. The in-memory table stays authoritative; callers decide whether
// a failed write is fatal.
type PersistenceError struct {
	baseError
	Op   string // "read", "write" or "lock"
	File string
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(op, file string, cause error) *PersistenceError {
	return &PersistenceError{
		baseError: baseError{
			message:   fmt.Sprintf("%s lock table", op),
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
		Op:   op,
		File: file,
	}
}

// WithSeverity sets the error severity.
func (e *PersistenceError) WithSeverity(s Severity) *PersistenceError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *PersistenceError) Error() string {
	var parts []string
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}
	return formatWithContext("persistence error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *PersistenceError) Is(target error) bool {
	if _, ok := target.(*PersistenceError); ok {
		return true
	}
	if target == ErrPersistence {
		return true
	}
	return e.baseError.Is(target)
}

// ResolutionError represents a conflict that could not be mapped to an action.
type ResolutionError struct {
	baseError
	Strategy string
}

// NewResolutionError creates a new ResolutionError for the given strategy value.
func NewResolutionError(strategy string, cause error) *ResolutionError {
	return &ResolutionError{
		baseError: baseError{
			message:  "cannot resolve conflict",
			cause:    cause,
			severity: SeverityError,
		},
		Strategy: strategy,
	}
}

// Error returns the formatted error message.
func (e *ResolutionError) Error() string {
	parts := []string{fmt.Sprintf("strategy=%q", e.Strategy)}
	return formatWithContext("resolution error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ResolutionError) Is(target error) bool {
	if _, ok := target.(*ResolutionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("holder cannot be empty").WithField("holder")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for release of src/x.go", 5*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for release of src/x.go (timeout: 5m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// formatWithContext renders "<prefix> [k=v, ...]: message: cause".
func formatWithContext(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Timeouts and persistence failures are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var lsErr LockstepError
	if As(err, &lsErr) {
		return lsErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LockstepError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var lsErr LockstepError
	if As(err, &lsErr) {
		return lsErr.Severity()
	}

	return SeverityError
}

// IsTimeout reports whether err is, or wraps, a timeout.
func IsTimeout(err error) bool {
	return Is(err, ErrTimeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
