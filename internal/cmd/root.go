package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/lockstep/internal/config"
)

// ProjectConfigFile is a per-project config file picked up from the working
// directory in preference to the user config.
const ProjectConfigFile = "lockstep.yaml"

var rootCmd = &cobra.Command{
	Use:   "lockstep",
	Short: "Coordinate file access between concurrent agents",
	Long: `Lockstep keeps agents that share one working tree from editing the same
file at the same time. Agents announce a read, write or modify before touching
a file; conflicting requests are detected and resolved by waiting, pausing for
a human, or cancelling.

The lock table lives in a JSON file inside the state directory (.lockstep by
default), so every lockstep process in the project sees the same locks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Cancelling ctx interrupts waits, prompts
// and watch.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./lockstep.yaml or $HOME/.config/lockstep/config.yaml)")
	rootCmd.PersistentFlags().String("state-dir", "", "directory holding the lock table (default .lockstep)")
}

func initConfig() {
	// Bound here rather than in init so that a viper.Reset keeps the flags.
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("locks.state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))

	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(ProjectConfigFile); err == nil {
		viper.SetConfigFile(ProjectConfigFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/lockstep")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LOCKSTEP")
	// e.g., LOCKSTEP_LOCKS_WAIT_TIMEOUT for locks.wait_timeout
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
