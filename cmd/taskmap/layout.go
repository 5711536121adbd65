package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taskmap/internal/config"
	"taskmap/internal/engine"
	"taskmap/internal/logging"
	"taskmap/internal/types"
)

var (
	maxTicks   int
	outputPath string
	pinFlags   []string
)

var layoutCmd = &cobra.Command{
	Use:   "layout [tasks-file]",
	Short: "Run the layout until it settles and print node positions",
	Long: `Runs the simulation headless, without frame pacing, until it cools or
--max-ticks is reached, then prints every node. Use "-" to read tasks
from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runLayoutCmd,
}

func init() {
	for _, c := range []*cobra.Command{layoutCmd, reportCmd} {
		c.Flags().IntVar(&maxTicks, "max-ticks", 5000, "Stop after this many ticks even if the layout has not cooled")
		c.Flags().StringSliceVar(&pinFlags, "pin", nil, "Pin a node, as id=x,y (repeatable)")
	}
	layoutCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write output to a file instead of stdout")
}

type nodeOut struct {
	ID     string  `json:"id" yaml:"id"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Radius float64 `json:"radius" yaml:"radius"`
	Active bool    `json:"active,omitempty" yaml:"active,omitempty"`
	Pinned bool    `json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

type layoutResult struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	Ticks     int       `json:"ticks" yaml:"ticks"`
	Cooled    bool      `json:"cooled" yaml:"cooled"`
	Alpha     float64   `json:"alpha" yaml:"alpha"`
	Nodes     []nodeOut `json:"nodes" yaml:"nodes"`
	Links     []linkOut `json:"links" yaml:"links"`
	Warnings  []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type linkOut struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// settleLayout builds an engine for tasks and ticks it until it cools or
// limit ticks have run.
func settleLayout(cfg config.ForceLayoutConfig, tasks []types.Task, pins map[string]types.Point, limit int) (*engine.Engine, layoutResult, error) {
	e, err := engine.New(cfg)
	if err != nil {
		return nil, layoutResult{}, err
	}
	res := layoutResult{SessionID: e.SessionID()}

	if err := e.SetTasks(tasks, pins); err != nil {
		res.Warnings = append(res.Warnings, strings.Split(err.Error(), "\n")...)
	}
	for id, p := range pins {
		if err := e.PinNode(id, p.X, p.Y); err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		}
	}

	e.Start()
	for res.Ticks < limit && e.Tick() {
		res.Ticks++
	}
	res.Alpha = e.Simulation().Alpha()
	res.Cooled = res.Alpha <= e.GetConfig().Simulation.AlphaMin
	if !res.Cooled {
		res.Warnings = append(res.Warnings, fmt.Sprintf("layout did not cool within %d ticks", limit))
	}

	for _, n := range e.Nodes() {
		res.Nodes = append(res.Nodes, nodeOut{ID: n.ID, X: n.X, Y: n.Y, Radius: n.Radius, Active: n.Active, Pinned: n.Pinned()})
	}
	for _, l := range e.Links() {
		res.Links = append(res.Links, linkOut{Source: l.Source, Target: l.Target})
	}
	logging.Engine("layout settled: ticks=%d alpha=%.4f nodes=%d", res.Ticks, res.Alpha, len(res.Nodes))
	return e, res, nil
}

// parsePins reads id=x,y flags.
func parsePins(flags []string) (map[string]types.Point, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	pins := make(map[string]types.Point, len(flags))
	for _, f := range flags {
		id, coords, ok := strings.Cut(f, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid pin %q: want id=x,y", f)
		}
		var p types.Point
		if _, err := fmt.Sscanf(coords, "%g,%g", &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("invalid pin %q: %w", f, err)
		}
		pins[id] = p
	}
	return pins, nil
}

func runLayoutCmd(cmd *cobra.Command, args []string) error {
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

	w := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return encode(w, format, res)
}

// encode writes v as JSON or YAML.
func encode(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: want json or yaml", format)
	}
}
