package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/lockstep/internal/config"
	"github.com/Iron-Ham/lockstep/internal/event"
	"github.com/Iron-Ham/lockstep/internal/logging"
	"github.com/Iron-Ham/lockstep/internal/monitor"
	"github.com/Iron-Ham/lockstep/internal/prompt"
	"github.com/Iron-Ham/lockstep/internal/resolution"
)

// runtime bundles what a lock command needs: the loaded config, a monitor
// over the project's state directory, and the logger and bus behind it.
type runtime struct {
	cfg      *config.Config
	workDir  string
	stateDir string
	logger   *logging.Logger
	bus      *event.Bus
	monitor  *monitor.Monitor
}

// newRuntime loads the configuration and opens the monitor. Every lockstep
// process may write the table, so the monitor always reloads changes made by
// other processes.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		workDir:  workDir,
		stateDir: cfg.Locks.ResolveStateDir(workDir),
	}

	if cfg.Logging.Enabled {
		rt.logger, err = logging.NewLogger(rt.stateDir, cfg.Logging.Level, logging.WithRotation(logging.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		}))
		if err != nil {
			return nil, err
		}
	} else {
		rt.logger = logging.NewWriterLogger(cmd.ErrOrStderr(), logging.LevelWarn)
	}

	rt.bus = event.NewBus(event.WithLogger(rt.logger))
	rt.monitor, err = monitor.New(
		monitor.WithStateDir(rt.stateDir),
		monitor.WithStateFile(cfg.Locks.StateFile),
		monitor.WithPollInterval(cfg.Locks.PollInterval),
		monitor.WithWaitTimeout(cfg.Locks.WaitTimeout),
		monitor.WithExternalWriters(true),
		monitor.WithChooser(chooserFor(cfg)),
		monitor.WithBus(rt.bus),
		monitor.WithLogger(rt.logger),
	)
	if err != nil {
		_ = rt.logger.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases the log file.
func (rt *runtime) Close() {
	_ = rt.logger.Close()
}

// chooserFor picks how conflicts without an explicit strategy are resolved:
// a configured default strategy wins, then an interactive prompt. With
// neither, the engine falls back to sequential.
func chooserFor(cfg *config.Config) resolution.Chooser {
	if s := cfg.Resolution.DefaultStrategy; s != "" {
		return resolution.Fixed(s)
	}
	if cfg.Resolution.Interactive {
		return &prompt.TerminalChooser{}
	}
	return nil
}
