package main

import (
	"github.com/spf13/cobra"

	"taskmap/internal/diagnostics"
	"taskmap/internal/perf"
)

var reportCmd = &cobra.Command{
	Use:   "report [tasks-file]",
	Short: "Settle a layout and print its collision report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportCmd,
}

type reportOut struct {
	Layout      layoutSummary               `json:"layout" yaml:"layout"`
	Collisions  diagnostics.CollisionTest   `json:"collisions" yaml:"collisions"`
	Report      diagnostics.CollisionReport `json:"report" yaml:"report"`
	Performance perf.Snapshot               `json:"performance" yaml:"performance"`
}

type layoutSummary struct {
	Ticks    int      `json:"ticks" yaml:"ticks"`
	Cooled   bool     `json:"cooled" yaml:"cooled"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tasks, err := loadTasks(args[0])
	if err != nil {
		return err
	}
	pins, err := parsePins(pinFlags)
	if err != nil {
		return err
	}

	e, res, err := settleLayout(cfg, tasks, pins, maxTicks)
	if err != nil {
		return err
	}
	defer e.Close()

	out := reportOut{
		Layout:      layoutSummary{Ticks: res.Ticks, Cooled: res.Cooled, Warnings: res.Warnings},
		Collisions:  e.TestCollisionDetection(),
		Report:      e.GenerateCollisionReport(),
		Performance: e.GetPerformanceMetrics(),
	}
	return encode(cmd.OutOrStdout(), format, out)
}
