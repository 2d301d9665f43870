package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// LockError Tests
// -----------------------------------------------------------------------------

func TestLockError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *LockError
		want string
	}{
		{
			name: "no context",
			err:  NewLockError("acquire failed", nil),
			want: "lock error: acquire failed",
		},
		{
			name: "path and holder",
			err:  NewLockError("acquire failed", ErrInvalidOperation).WithPath("src/x.go").WithHolder("agent-a"),
			want: "lock error [path=src/x.go, holder=agent-a]: acquire failed: invalid lock operation",
		},
		{
			name: "with task",
			err:  NewLockError("release failed", nil).WithTaskID("task-1"),
			want: "lock error [task=task-1]: release failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLockError_Is(t *testing.T) {
	err := NewLockError("acquire failed", ErrInvalidOperation)

	if !errors.Is(err, ErrInvalidOperation) {
		t.Error("errors.Is(err, ErrInvalidOperation) = false, want true")
	}
	if !errors.Is(err, &LockError{}) {
		t.Error("errors.Is(err, &LockError{}) = false, want true")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = true, want false")
	}
}

func TestLockError_FollowsCause(t *testing.T) {
	tests := []struct {
		name      string
		cause     error
		retryable bool
		severity  Severity
	}{
		{"no cause", nil, false, SeverityError},
		{"plain cause", ErrInvalidOperation, false, SeverityError},
		{"timeout", NewTimeoutError("waiting for release of a.go", time.Second), true, SeverityWarning},
		{"failed write", NewPersistenceError("write", "locks.json", nil).WithSeverity(SeverityError), true, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLockError("wait for release", tt.cause).WithPath("a.go")
			if got := IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := GetSeverity(err); got != tt.severity {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.severity)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// PersistenceError Tests
// -----------------------------------------------------------------------------

func TestPersistenceError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewPersistenceError("write", "/state/locks.json", cause)

	want := "persistence error [file=/state/locks.json]: write lock table: disk full"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrPersistence) {
		t.Error("errors.Is(err, ErrPersistence) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(err), SeverityWarning)
	}

	err = err.WithSeverity(SeverityCritical)
	if GetSeverity(err) != SeverityCritical {
		t.Errorf("GetSeverity() after WithSeverity = %v, want %v", GetSeverity(err), SeverityCritical)
	}
}

func TestPersistenceError_Wrapped(t *testing.T) {
	err := Wrap(NewPersistenceError("read", "locks.json", ErrCorruptState), "load monitor")

	var pErr *PersistenceError
	if !As(err, &pErr) {
		t.Fatal("As(*PersistenceError) = false, want true")
	}
	if pErr.Op != "read" {
		t.Errorf("Op = %q, want %q", pErr.Op, "read")
	}
	if !Is(err, ErrCorruptState) {
		t.Error("Is(err, ErrCorruptState) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// ResolutionError Tests
// -----------------------------------------------------------------------------

func TestResolutionError(t *testing.T) {
	err := NewResolutionError("rebase", ErrUnknownStrategy)

	want := `resolution error [strategy="rebase"]: cannot resolve conflict: unknown resolution strategy`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Error("errors.Is(err, ErrUnknownStrategy) = false, want true")
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true, want false")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("holder cannot be empty").WithField("holder").WithValue("")

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(err, ErrInvalidInput) = false, want true")
	}
	want := "validation error [field=holder, value=]: holder cannot be empty"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withCause := NewValidationError("bad op").WithCause(ErrInvalidOperation)
	if !errors.Is(withCause, ErrInvalidOperation) {
		t.Error("errors.Is(withCause, ErrInvalidOperation) = false, want true")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for release of src/x.go", 100*time.Millisecond)

	want := "timeout error: waiting for release of src/x.go (timeout: 100ms)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if !IsTimeout(Wrap(err, "request")) {
		t.Error("IsTimeout(wrapped) = false, want true")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Helper Tests
// -----------------------------------------------------------------------------

func TestClassificationHelpers_Nil(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) = true, want false")
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", GetSeverity(nil), SeverityDebug)
	}
	if GetSeverity(fmt.Errorf("plain")) != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", GetSeverity(fmt.Errorf("plain")), SeverityError)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrTimeout, "wait %s", "src/x.go")
	if err.Error() != "wait src/x.go: operation timed out" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !Is(err, ErrTimeout) {
		t.Error("Wrapf should preserve the wrapped error")
	}
}
