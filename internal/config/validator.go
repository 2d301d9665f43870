package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/lockstep/internal/resolution"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "locks.wait_timeout")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// maxPathLength is a conservative limit shared by most filesystems.
const maxPathLength = 4096

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLocks()...)
	errors = append(errors, c.validateResolution()...)
	errors = append(errors, c.validateGuard()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateLocks validates the LocksConfig
func (c *Config) validateLocks() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validatePath("locks.state_dir", c.Locks.StateDir)...)

	if c.Locks.StateFile == "" {
		errors = append(errors, ValidationError{
			Field:   "locks.state_file",
			Value:   c.Locks.StateFile,
			Message: "must not be empty",
		})
	} else {
		errors = append(errors, validatePath("locks.state_file", c.Locks.StateFile)...)
	}

	if c.Locks.WaitTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "locks.wait_timeout",
			Value:   c.Locks.WaitTimeout,
			Message: "must be positive",
		})
	}

	// Sub-10ms polling would spin on the state file
	const minPollInterval = 10 * time.Millisecond
	if c.Locks.PollInterval < minPollInterval {
		errors = append(errors, ValidationError{
			Field:   "locks.poll_interval",
			Value:   c.Locks.PollInterval,
			Message: fmt.Sprintf("must be at least %s", minPollInterval),
		})
	}

	if c.Locks.WaitTimeout > 0 && c.Locks.PollInterval > c.Locks.WaitTimeout {
		errors = append(errors, ValidationError{
			Field:   "locks.poll_interval",
			Value:   c.Locks.PollInterval,
			Message: fmt.Sprintf("must not exceed locks.wait_timeout (%s)", c.Locks.WaitTimeout),
		})
	}

	return errors
}

// validateResolution validates the ResolutionConfig
func (c *Config) validateResolution() []ValidationError {
	var errors []ValidationError

	if s := c.Resolution.DefaultStrategy; s != "" && !s.Valid() {
		names := make([]string, 0, len(resolution.Strategies()))
		for _, st := range resolution.Strategies() {
			names = append(names, string(st))
		}
		errors = append(errors, ValidationError{
			Field:   "resolution.default_strategy",
			Value:   string(s),
			Message: fmt.Sprintf("must be empty or one of: %s", strings.Join(names, ", ")),
		})
	}

	return errors
}

// validateGuard validates the GuardConfig
func (c *Config) validateGuard() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validatePath("guard.root", c.Guard.Root)...)

	for i, pattern := range c.Guard.Ignore {
		field := fmt.Sprintf("guard.ignore[%d]", i)
		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: "pattern must not be empty",
			})
			continue
		}
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	if c.Guard.Debounce < 0 {
		errors = append(errors, ValidationError{
			Field:   "guard.debounce",
			Value:   c.Guard.Debounce,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative (0 disables rotation)",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePath rejects null bytes and overlong paths. Empty paths are allowed.
func validatePath(field, path string) []ValidationError {
	var errors []ValidationError

	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
