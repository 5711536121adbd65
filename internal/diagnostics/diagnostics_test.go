package diagnostics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmap/internal/config"
	"taskmap/internal/perf"
	"taskmap/internal/types"
)

func grid(n int, step float64) []types.PhysicsNode {
	nodes := make([]types.PhysicsNode, n)
	for i := range nodes {
		nodes[i] = types.PhysicsNode{ID: string(rune('a' + i)), X: float64(i%4) * step, Y: float64(i/4) * step}
	}
	return nodes
}

func TestCollisionDetection_Passes(t *testing.T) {
	res := TestCollisionDetection(grid(8, 100), config.DefaultConfig())
	assert.True(t, res.Passed)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Recommendations)
	assert.Equal(t, 8, res.NodeCount)
	assert.Equal(t, 60.0, res.MinNodeSeparation)
}

func TestCollisionDetection_ReportsViolations(t *testing.T) {
	nodes := []types.PhysicsNode{
		{ID: "a", X: 0, Y: 0},
		{ID: "b", X: 30, Y: 0},
		{ID: "c", X: 0, Y: 55},
		{ID: "d", X: 500, Y: 500},
	}
	res := TestCollisionDetection(nodes, config.DefaultConfig())
	require.False(t, res.Passed)
	require.Len(t, res.Violations, 2)
	assert.Equal(t, Violation{A: "a", B: "b", Distance: 30, Minimum: 60}, res.Violations[0])
	assert.Equal(t, "c", res.Violations[1].B)
	assert.InDelta(t, 55, res.Violations[1].Distance, 1e-9)
	assert.NotEmpty(t, res.Recommendations)
}

func TestCollisionDetection_ExemptsPinned(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a"}, {ID: "b", X: 10}}
	nodes[0].Pin(0, 0)
	res := TestCollisionDetection(nodes, config.DefaultConfig())
	assert.True(t, res.Passed)
	assert.Equal(t, 1, res.PairsChecked)
}

func TestCollisionDetection_ExactMinimumPasses(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a"}, {ID: "b", X: 60}}
	assert.True(t, TestCollisionDetection(nodes, config.DefaultConfig()).Passed)
}

func TestRecommendations(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Performance.CollisionSampleRate = 0.5
	cfg.Forces.CollisionRadius = 10
	recs := recommend(cfg, 5, 10)
	assert.Contains(t, recs, "raise forces.collision_strength (currently 0.80)")
	assert.Contains(t, recs, "raise forces.collision_iterations (currently 2)")
	assert.Contains(t, recs, "raise forces.collision_radius to at least half of smart_spacing.min_node_separation")
	assert.Contains(t, recs, "let the simulation run longer or reheat it before measuring")
	assert.Len(t, recs, 5)
}

func TestGrade(t *testing.T) {
	budget := 16 * time.Millisecond
	tests := []struct {
		ratio float64
		frame time.Duration
		want  Quality
	}{
		{0, 0, QualityGood},
		{0.01, budget, QualityGood},
		{0.02, budget, QualityAcceptable},
		{0, 30 * time.Millisecond, QualityAcceptable},
		{0.05, 2 * budget, QualityAcceptable},
		{0.06, 0, QualityPoor},
		{0, 40 * time.Millisecond, QualityPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Grade(tt.ratio, tt.frame, budget), "ratio=%v frame=%v", tt.ratio, tt.frame)
	}
}

func TestGenerateCollisionReport(t *testing.T) {
	cfg := config.DefaultConfig()
	nodes := []types.PhysicsNode{
		{ID: "a", X: 0, Y: 0},
		{ID: "b", X: 100, Y: 0},
		{ID: "c", X: 200, Y: 0},
		{ID: "d", X: 300, Y: 0},
	}
	r := GenerateCollisionReport(nodes, cfg, perf.Snapshot{FrameTime: 5 * time.Millisecond})

	assert.Equal(t, 4, r.NodeCount)
	assert.Zero(t, r.OverlapCount)
	assert.InDelta(t, 100, r.AverageSeparation, 1e-9)
	assert.InDelta(t, 0, r.SeparationVariance, 1e-9)
	assert.InDelta(t, 100, r.MinSeparation, 1e-9)
	assert.Equal(t, QualityGood, r.LayoutQuality)
	assert.Empty(t, r.Recommendations)
}

func TestGenerateCollisionReport_Poor(t *testing.T) {
	cfg := config.DefaultConfig()
	nodes := []types.PhysicsNode{{ID: "a"}, {ID: "b", X: 1}, {ID: "c", X: 2}, {ID: "d", X: 400}}
	snap := perf.Snapshot{
		FrameTime:           50 * time.Millisecond,
		Load:                perf.LoadOverloaded,
		MemoryMB:            900,
		MemoryLimitMB:       512,
		MemoryLimitExceeded: true,
	}
	r := GenerateCollisionReport(nodes, cfg, snap)

	assert.Equal(t, 3, r.OverlapCount)
	assert.InDelta(t, 0.75, r.OverlapRatio, 1e-9)
	assert.InDelta(t, 1, r.MinSeparation, 1e-9)
	assert.Equal(t, QualityPoor, r.LayoutQuality)
	assert.True(t, errors.Is(r.Performance.Err(), perf.ErrResourceExhausted))
	assert.Contains(t, r.Recommendations, "frames exceed budget; reduce the node count or performance.max_frame_rate")
}

func TestGenerateCollisionReport_Empty(t *testing.T) {
	r := GenerateCollisionReport(nil, config.DefaultConfig(), perf.Snapshot{})
	assert.Zero(t, r.NodeCount)
	assert.Zero(t, r.OverlapRatio)
	assert.Equal(t, QualityGood, r.LayoutQuality)
}
