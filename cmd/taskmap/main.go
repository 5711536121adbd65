// Command taskmap lays out task dependency graphs with the force-directed
// engine: headless runs that emit positions, collision reports,
// configuration tooling and a live terminal view.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskmap/internal/config"
	"taskmap/internal/logging"
)

var (
	// Global flags
	verbose    bool
	logJSON    bool
	configPath string
	format     string
)

var rootCmd = &cobra.Command{
	Use:   "taskmap",
	Short: "Force-directed layout for task dependency graphs",
	Long: `taskmap positions tasks as nodes of a force-directed graph.

Dependencies become links, the in-progress task is kept in focus, and
nodes are spaced so that none overlap. Tasks are read from a JSON or YAML
file holding either a list of tasks or an object with a "tasks" list.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := config.LogLevelFromEnv("warn")
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(logging.Options{Level: level, JSON: logJSON}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.Get(logging.CategoryBoot).Debug("command %s", cmd.CommandPath())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Layout configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")

	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(viewCmd)
}

// loadConfig returns the --config file, or the defaults with environment
// overrides when no file was given.
func loadConfig() (config.ForceLayoutConfig, error) {
	if configPath == "" {
		return config.Load("")
	}
	if _, err := os.Stat(configPath); err != nil {
		return config.ForceLayoutConfig{}, fmt.Errorf("config %s: %w", configPath, err)
	}
	return config.Load(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
