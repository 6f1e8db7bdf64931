// Package commands implements the triage CLI commands using cobra.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/triage/internal/config"
	"github.com/marcus/triage/internal/logging"
)

var (
	// Version is set at build time
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Prioritize tasks with a remote scoring service",
	Long: `Triage sends your task list to a scoring service, weighted by a
prioritization strategy, and shows the scored list with the top
recommendations.

Configure the service in triage.yaml or ~/.config/triage/config.yaml.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Get().Close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: triage.yaml, then ~/.config/triage/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

// cfg is loaded before every command runs.
var cfg *config.Config

func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		loaded.Logging.Level = "debug"
	}
	if err := config.Validate(loaded); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Init(loaded.LogConfig()); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	cfg = loaded
	return nil
}
