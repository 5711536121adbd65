// Package force implements the layout force model: many-body charge,
// dependency links, centering and collision. Forces accumulate into node
// velocities; integration is left to the simulation.
package force

import (
	"context"
	"runtime"

	"taskmap/internal/config"
	"taskmap/internal/spacing"
	"taskmap/internal/types"
)

// Link is a dependency edge resolved to node indices.
type Link struct {
	Source, Target int
	Strength       float64
	Distance       float64
}

// Params is the force-model view of the configuration, after the
// governor's throttle overrides are folded in.
type Params struct {
	ChargeStrength      float64
	Theta               float64
	CenterStrength      float64
	CenterX, CenterY    float64
	CollisionStrength   float64
	CollisionIterations int
	SampleRate          float64
	IndexCapacity       int
	ParallelThreshold   int
	Workers             int
	Spacing             spacing.Params
}

// ParamsFrom builds Params from cfg.
func ParamsFrom(cfg config.ForceLayoutConfig) Params {
	f, perf := cfg.Forces, cfg.Performance
	workers := perf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sample := perf.CollisionSampleRate
	if sample <= 0 || sample > 1 {
		sample = 1
	}
	return Params{
		ChargeStrength:      f.ChargeStrength,
		Theta:               f.Theta + perf.ThetaBoost,
		CenterStrength:      f.CenterStrength,
		CenterX:             cfg.Dimensions.Width / 2,
		CenterY:             cfg.Dimensions.Height / 2,
		CollisionStrength:   f.CollisionStrength,
		CollisionIterations: f.CollisionIterations,
		SampleRate:          sample,
		IndexCapacity:       perf.IndexCapacity,
		ParallelThreshold:   perf.ParallelThreshold,
		Workers:             workers,
		Spacing:             spacing.ParamsFrom(cfg),
	}
}

// Input is one tick's worth of force-model state. Nodes are mutated in
// place: only VX and VY change.
type Input struct {
	Nodes    []types.PhysicsNode
	Links    []Link
	Radii    []float64
	Clusters []int
	Alpha    float64
	Tick     uint64
	Params   Params
}

func (in *Input) sameCluster(i, j int) bool {
	if len(in.Clusters) != len(in.Nodes) {
		return true
	}
	return in.Clusters[i] == in.Clusters[j]
}

func (in *Input) radius(i int) float64 {
	if i < len(in.Radii) {
		return in.Radii[i]
	}
	return in.Params.Spacing.CollisionRadius
}

// Apply runs every force once, in order: link, charge, center, collision.
// Pinned nodes end with zero velocity.
func Apply(ctx context.Context, in *Input) error {
	if len(in.Nodes) == 0 {
		return nil
	}
	applyLinks(in)
	if err := applyCharge(ctx, in); err != nil {
		return err
	}
	applyCenter(in)
	applyCollision(in)

	for i := range in.Nodes {
		if in.Nodes[i].Pinned() {
			in.Nodes[i].VX, in.Nodes[i].VY = 0, 0
		}
	}
	return nil
}

// pairWeights splits a correction between two nodes. wi is the share of
// node i; pinned nodes take none of it.
func pairWeights(pi, pj bool, wi float64) (float64, float64) {
	switch {
	case pi && pj:
		return 0, 0
	case pi:
		return 0, 1
	case pj:
		return 1, 0
	}
	return wi, 1 - wi
}
