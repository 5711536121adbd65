package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskmap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate layout configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := config.ToSerializable(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigValidate,
}

var configDiffCmd = &cobra.Command{
	Use:   "diff [from] [to]",
	Short: "List the fields that differ between two configuration files",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigDiff,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configDiffCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	res := config.ValidationResult{RuleVersion: config.DefaultRules().Version}
	cfg, err := config.FromSerializable(data)
	if ce, ok := err.(*config.ConfigurationError); ok {
		res.Errors, res.Warnings = ce.Errors, ce.Warnings
	} else if err != nil {
		return err
	} else {
		res = config.NewValidator(config.DefaultRules()).Validate(cfg)
	}
	if err := encode(cmd.OutOrStdout(), format, res); err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("%s: %d errors", args[0], len(res.Errors))
	}
	return nil
}

func runConfigDiff(cmd *cobra.Command, args []string) error {
	from, err := config.Load(args[0])
	if err != nil {
		return err
	}
	to, err := config.Load(args[1])
	if err != nil {
		return err
	}
	changes := config.DiffForTransition(from, to)
	out := struct {
		Changes []config.FieldChange `json:"changes" yaml:"changes"`
		Reheat  bool                 `json:"requires_reheat" yaml:"requires_reheat"`
	}{changes, config.RequiresReheat(changes)}
	return encode(cmd.OutOrStdout(), format, out)
}
