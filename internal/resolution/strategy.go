package resolution

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/lockstep/internal/errors"
	"github.com/Iron-Ham/lockstep/internal/filelock"
)

// Strategy names a policy for handling a conflict.
type Strategy string

const (
	// Sequential waits for the conflicting holder to release, then retries.
	Sequential Strategy = "sequential"
	// Merge would combine both edits. It is handled as Manual.
	Merge Strategy = "merge"
	// Manual pauses both tasks pending human intervention.
	Manual Strategy = "manual"
	// Cancel abandons the requester's task.
	Cancel Strategy = "cancel"
)

// Strategies returns every known strategy in prompt order.
func Strategies() []Strategy {
	return []Strategy{Sequential, Merge, Manual, Cancel}
}

// ParseStrategy converts a case-insensitive name into a Strategy.
// "SEQUENTIAL", "Sequential" and "sequential" are equivalent.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownStrategy, s)
	}
	return st, nil
}

// Valid reports whether s is one of the four strategies.
func (s Strategy) Valid() bool {
	switch s {
	case Sequential, Merge, Manual, Cancel:
		return true
	}
	return false
}

// Description is a one-line explanation shown by interactive choosers.
func (s Strategy) Description() string {
	switch s {
	case Sequential:
		return "wait for the other agent to finish, then retry"
	case Merge:
		return "attempt an automatic merge (falls back to manual)"
	case Manual:
		return "pause both agents until a human resolves it"
	case Cancel:
		return "abandon the requesting task"
	}
	return ""
}

func (s Strategy) String() string { return string(s) }

// Chooser elicits a strategy for a conflict, typically from a human.
// Returning an empty Strategy with a nil error declines the choice.
type Chooser interface {
	ChooseStrategy(ctx context.Context, conflict filelock.ConflictDetection) (Strategy, error)
}

// ChooserFunc adapts an ordinary function to the Chooser interface.
type ChooserFunc func(ctx context.Context, conflict filelock.ConflictDetection) (Strategy, error)

// ChooseStrategy calls f.
func (f ChooserFunc) ChooseStrategy(ctx context.Context, conflict filelock.ConflictDetection) (Strategy, error) {
	return f(ctx, conflict)
}

// Fixed returns a Chooser that always answers s. Useful for non-interactive
// callers that still want to go through the chooser path.
func Fixed(s Strategy) Chooser {
	return ChooserFunc(func(context.Context, filelock.ConflictDetection) (Strategy, error) {
		return s, nil
	})
}
