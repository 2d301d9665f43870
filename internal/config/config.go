package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/lockstep/internal/resolution"
)

// Config represents the complete lockstep configuration
type Config struct {
	Locks      LocksConfig      `mapstructure:"locks" yaml:"locks"`
	Resolution ResolutionConfig `mapstructure:"resolution" yaml:"resolution"`
	Guard      GuardConfig      `mapstructure:"guard" yaml:"guard"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// LocksConfig controls where the lock table lives and how long waiters wait
type LocksConfig struct {
	// StateDir holds the persisted lock table and the log file.
	// Relative paths resolve against the working directory; ~ is expanded.
	// (default: ".lockstep")
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
	// StateFile is the lock table file name inside StateDir (default: "locks.json")
	StateFile string `mapstructure:"state_file" yaml:"state_file"`
	// WaitTimeout bounds how long a sequential resolution waits for a release.
	// Accepts Go durations ("5m") or plain milliseconds (300000). (default: 5m)
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	// PollInterval is how often a waiter rechecks a held path (default: 500ms)
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ResolutionConfig controls how conflicts are resolved
type ResolutionConfig struct {
	// DefaultStrategy is applied when a request does not name one.
	// Options: "sequential", "merge", "manual", "cancel", or "" to ask.
	// (default: "")
	DefaultStrategy resolution.Strategy `mapstructure:"default_strategy" yaml:"default_strategy"`
	// Interactive allows prompting on a terminal when no strategy is known.
	// Without a terminal the prompt is skipped and sequential applies.
	// (default: true)
	Interactive bool `mapstructure:"interactive" yaml:"interactive"`
}

// GuardConfig controls the unguarded-write watcher
type GuardConfig struct {
	// Root is the directory tree to watch (default: ".")
	Root string `mapstructure:"root" yaml:"root"`
	// Ignore lists glob patterns, relative to Root, that are never reported
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// Debounce coalesces bursts of writes to one file (default: 100ms)
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes logs to lockstep.log in the state directory; otherwise
	// warnings and errors go to stderr (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB rotates lockstep.log past this size; 0 disables rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is how many rotated log files are kept (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// ResolveStateDir returns the resolved state directory path.
// If StateDir is empty, it returns the default path relative to baseDir.
// If StateDir starts with ~, it expands to the user's home directory.
// If StateDir is a relative path, it's resolved relative to baseDir.
func (l *LocksConfig) ResolveStateDir(baseDir string) string {
	if l.StateDir == "" {
		return filepath.Join(baseDir, ".lockstep")
	}

	path := l.StateDir

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Locks: LocksConfig{
			StateDir:     ".lockstep",
			StateFile:    "locks.json",
			WaitTimeout:  5 * time.Minute,
			PollInterval: 500 * time.Millisecond,
		},
		Resolution: ResolutionConfig{
			DefaultStrategy: "", // Ask the chooser
			Interactive:     true,
		},
		Guard: GuardConfig{
			Root: ".",
			Ignore: []string{
				".git/**",
				".lockstep/**",
				"**/*.swp",
				"**/*~",
				"**/*.tmp",
			},
			Debounce: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Locks defaults
	viper.SetDefault("locks.state_dir", defaults.Locks.StateDir)
	viper.SetDefault("locks.state_file", defaults.Locks.StateFile)
	viper.SetDefault("locks.wait_timeout", defaults.Locks.WaitTimeout)
	viper.SetDefault("locks.poll_interval", defaults.Locks.PollInterval)

	// Resolution defaults
	viper.SetDefault("resolution.default_strategy", string(defaults.Resolution.DefaultStrategy))
	viper.SetDefault("resolution.interactive", defaults.Resolution.Interactive)

	// Guard defaults
	viper.SetDefault("guard.root", defaults.Guard.Root)
	viper.SetDefault("guard.ignore", defaults.Guard.Ignore)
	viper.SetDefault("guard.debounce", defaults.Guard.Debounce)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// DecodeHook returns the mapstructure hooks used to decode lockstep config:
// durations from strings or milliseconds, comma-separated lists from env
// vars, and case-insensitive strategy names.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		millisecondsHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		strategyHookFunc(),
	)
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	strategyType = reflect.TypeOf(resolution.Strategy(""))
)

// millisecondsHookFunc decodes bare numbers, and strings holding only digits,
// into durations as milliseconds, so "wait_timeout: 300000" means five minutes.
func millisecondsHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case float64:
			return time.Duration(v * float64(time.Millisecond)), nil
		case string:
			if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}
		}
		return data, nil
	}
}

// strategyHookFunc folds strategy names to lower case. Unknown names pass
// through unchanged and are reported by Validate.
func strategyHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != strategyType || f.Kind() != reflect.String {
			return data, nil
		}
		s := strings.TrimSpace(reflect.ValueOf(data).String())
		if s == "" {
			return resolution.Strategy(""), nil
		}
		if st, err := resolution.ParseStrategy(s); err == nil {
			return st, nil
		}
		return resolution.Strategy(s), nil
	}
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lockstep")
	}
	// Fall back to ~/.config/lockstep
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lockstep"
	}
	return filepath.Join(home, ".config", "lockstep")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
