package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/forecast/internal/buildinfo"
)

// defaultConfigPath is where init writes and the other commands read.
const defaultConfigPath = "forecast.yaml"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "forecast",
		Short:   "Balance forecast for a Firefly III main account",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "config file (.yaml or .toml)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newPredictCommand(&configPath))
	rootCmd.AddCommand(newRunCommand(&configPath))
	rootCmd.AddCommand(newHistoryCommand(&configPath))

	return rootCmd
}
