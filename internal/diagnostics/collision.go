// Package diagnostics inspects a layout for spacing violations and rates
// its overall quality.
package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"taskmap/internal/config"
	"taskmap/internal/logging"
	"taskmap/internal/spatial"
	"taskmap/internal/types"
)

// Tolerance is the slack allowed below the minimum separation before a
// pair counts as a violation.
const Tolerance = 1e-6

// Violation is a node pair closer than the minimum separation.
type Violation struct {
	A        string  `json:"a" yaml:"a"`
	B        string  `json:"b" yaml:"b"`
	Distance float64 `json:"distance" yaml:"distance"`
	Minimum  float64 `json:"minimum" yaml:"minimum"`
}

// CollisionTest is the result of TestCollisionDetection.
type CollisionTest struct {
	NodeCount         int         `json:"node_count" yaml:"node_count"`
	PairsChecked      int         `json:"pairs_checked" yaml:"pairs_checked"`
	MinNodeSeparation float64     `json:"min_node_separation" yaml:"min_node_separation"`
	Violations        []Violation `json:"violations" yaml:"violations"`
	Passed            bool        `json:"passed" yaml:"passed"`
	Recommendations   []string    `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// TestCollisionDetection reports every pair of nodes closer than the
// configured minimum separation. Pairs with a pinned node are exempt.
func TestCollisionDetection(nodes []types.PhysicsNode, cfg config.ForceLayoutConfig) CollisionTest {
	minSep := cfg.SmartSpacing.MinNodeSeparation
	res := CollisionTest{NodeCount: len(nodes), MinNodeSeparation: minSep}

	index := buildIndex(nodes, cfg)
	for i := range nodes {
		a := &nodes[i]
		index.Query(a.X, a.Y, minSep, func(it spatial.Item) bool {
			j := it.Index
			if j <= i {
				return true
			}
			res.PairsChecked++
			b := &nodes[j]
			if a.Pinned() || b.Pinned() {
				return true
			}
			d := math.Hypot(a.X-b.X, a.Y-b.Y)
			if d < minSep-Tolerance {
				res.Violations = append(res.Violations, Violation{A: a.ID, B: b.ID, Distance: d, Minimum: minSep})
			}
			return true
		})
	}
	sort.Slice(res.Violations, func(i, j int) bool {
		return res.Violations[i].Distance < res.Violations[j].Distance
	})
	res.Passed = len(res.Violations) == 0
	if !res.Passed {
		res.Recommendations = recommend(cfg, len(res.Violations), len(nodes))
		logging.Get(logging.CategoryDiagnostics).Warn("collision test: %d violations across %d nodes", len(res.Violations), len(nodes))
	}
	return res
}

func buildIndex(nodes []types.PhysicsNode, cfg config.ForceLayoutConfig) *spatial.Quadtree {
	items := make([]spatial.Item, len(nodes))
	for i, n := range nodes {
		items[i] = spatial.Item{Index: i, X: n.X, Y: n.Y}
	}
	return spatial.Build(items, spatial.Options{Capacity: cfg.Performance.IndexCapacity})
}

func recommend(cfg config.ForceLayoutConfig, violations, nodes int) []string {
	var out []string
	f, p := cfg.Forces, cfg.Performance
	if f.CollisionStrength < 1 {
		out = append(out, fmt.Sprintf("raise forces.collision_strength (currently %.2f)", f.CollisionStrength))
	}
	if f.CollisionIterations < 4 {
		out = append(out, fmt.Sprintf("raise forces.collision_iterations (currently %d)", f.CollisionIterations))
	}
	if 2*f.CollisionRadius < cfg.SmartSpacing.MinNodeSeparation {
		out = append(out, "raise forces.collision_radius to at least half of smart_spacing.min_node_separation")
	}
	if p.CollisionSampleRate < 1 {
		out = append(out, fmt.Sprintf("collision sampling is throttled to %.0f%%; lower the throttle level or node count", p.CollisionSampleRate*100))
	}
	if !cfg.SmartSpacing.Enabled {
		out = append(out, "enable smart_spacing to enforce the separation floor")
	}
	if nodes > 0 && float64(violations)/float64(nodes) > 0.1 {
		out = append(out, "let the simulation run longer or reheat it before measuring")
	}
	return out
}
