package resolution

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/lockstep/internal/errors"
	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/logging"
)

// Result is the outcome of resolving a conflict. Success means an action was
// decided, not that the conflict is gone.
type Result struct {
	Strategy Strategy
	Success  bool
	Action   string
	Err      error
}

// Engine maps conflicts to resolution actions.
type Engine struct {
	chooser Chooser
	logger  *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithChooser sets the collaborator asked when no strategy is supplied.
func WithChooser(c Chooser) Option {
	return func(e *Engine) {
		e.chooser = c
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine. Without a chooser, an empty strategy resolves
// as Sequential.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("resolution")
	return e
}

// Resolve decides what to do about conflict. An empty strategy is delegated
// to the chooser. Names are matched case-insensitively. Resolve never panics on bad input: an unrecognized strategy
// is reported as a failed Result carrying a *errors.ResolutionError.
func (e *Engine) Resolve(ctx context.Context, conflict filelock.ConflictDetection, strategy Strategy) Result {
	if strategy == "" {
		strategy = e.choose(ctx, conflict)
	}
	if parsed, err := ParseStrategy(string(strategy)); err == nil {
		strategy = parsed
	}

	switch strategy {
	case Sequential:
		return e.sequential(conflict)
	case Merge:
		return e.merge(conflict)
	case Manual:
		return e.manual(conflict)
	case Cancel:
		return e.cancel(conflict)
	default:
		err := errors.NewResolutionError(string(strategy), errors.ErrUnknownStrategy)
		e.logger.Warn("unknown resolution strategy",
			"strategy", string(strategy),
			"path", conflict.Path)
		return Result{
			Strategy: strategy,
			Success:  false,
			Action:   fmt.Sprintf("unknown strategy %q", string(strategy)),
			Err:      err,
		}
	}
}

// choose asks the chooser for a strategy, defaulting to Sequential.
func (e *Engine) choose(ctx context.Context, conflict filelock.ConflictDetection) Strategy {
	if e.chooser == nil {
		return Sequential
	}

	s, err := e.chooser.ChooseStrategy(ctx, conflict)
	if err != nil {
		e.logger.Warn("strategy chooser failed, defaulting to sequential",
			"path", conflict.Path,
			"holder", conflict.Holder,
			"error", err)
		return Sequential
	}
	if s == "" {
		e.logger.Debug("strategy chooser declined, defaulting to sequential",
			"path", conflict.Path)
		return Sequential
	}
	return s
}

func (e *Engine) sequential(conflict filelock.ConflictDetection) Result {
	action := fmt.Sprintf("wait for %s to release %s, then retry", blockerName(conflict), conflict.Path)
	return Result{Strategy: Sequential, Success: true, Action: action}
}

// merge has no content-merge algorithm behind it; it is resolved exactly as
// Manual.
func (e *Engine) merge(conflict filelock.ConflictDetection) Result {
	e.logger.Info("merge requested, resolving manually", "path", conflict.Path)
	return e.manual(conflict)
}

func (e *Engine) manual(conflict filelock.ConflictDetection) Result {
	action := fmt.Sprintf("pause %s and %s on %s until a human resolves the conflict",
		blockerName(conflict), conflict.Holder, conflict.Path)
	return Result{Strategy: Manual, Success: true, Action: action}
}

func (e *Engine) cancel(conflict filelock.ConflictDetection) Result {
	action := fmt.Sprintf("cancel the task of %s on %s", conflict.Holder, conflict.Path)
	return Result{Strategy: Cancel, Success: true, Action: action}
}

func blockerName(conflict filelock.ConflictDetection) string {
	if blocker, ok := conflict.Blocker(); ok {
		return blocker.Holder
	}
	return "the current holder"
}
