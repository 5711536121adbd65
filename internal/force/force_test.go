package force

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r2"

	"taskmap/internal/config"
	"taskmap/internal/logging"
	"taskmap/internal/types"
)

func params() Params {
	p := ParamsFrom(config.DefaultConfig())
	p.Workers = 1
	return p
}

func dist(a, b types.PhysicsNode) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// integrate performs a minimal velocity-Verlet style step matching the
// simulation's integrator.
func integrate(nodes []types.PhysicsNode, decay float64) {
	for i := range nodes {
		n := &nodes[i]
		if n.Pinned() {
			n.X, n.Y = *n.FX, *n.FY
			continue
		}
		n.VX *= 1 - decay
		n.VY *= 1 - decay
		n.X += n.VX
		n.Y += n.VY
	}
}

func TestJitter_DeterministicAndAntisymmetric(t *testing.T) {
	dx1, dy1 := Jitter("a", "b")
	dx2, dy2 := Jitter("a", "b")
	assert.Equal(t, dx1, dx2)
	assert.Equal(t, dy1, dy2)

	rx, ry := Jitter("b", "a")
	assert.Equal(t, -dx1, rx)
	assert.Equal(t, -dy1, ry)

	assert.NotZero(t, math.Hypot(dx1, dy1))
	assert.Less(t, math.Hypot(dx1, dy1), jitterScale+1e-12)
}

func TestParamsFrom_FoldsGovernorOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Performance.ThetaBoost = 0.3
	cfg.Performance.CollisionSampleRate = 0
	cfg.Performance.Workers = 3

	p := ParamsFrom(cfg)
	assert.InDelta(t, 1.2, p.Theta, 1e-12)
	assert.Equal(t, 1.0, p.SampleRate)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, 600.0, p.CenterX)
	assert.Equal(t, 400.0, p.CenterY)
}

func TestCharge_Repels(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a", X: 100, Y: 100}, {ID: "b", X: 110, Y: 100}}
	p := params()
	p.CenterStrength = 0
	p.CollisionStrength = 0

	require.NoError(t, Apply(context.Background(), &Input{Nodes: nodes, Alpha: 1, Params: p}))
	assert.Less(t, nodes[0].VX, 0.0)
	assert.Greater(t, nodes[1].VX, 0.0)
	assert.InDelta(t, -nodes[0].VX, nodes[1].VX, 1e-9)
}

func TestCharge_CoincidentNodesSeparate(t *testing.T) {
	nodes := make([]types.PhysicsNode, 5)
	for i := range nodes {
		nodes[i] = types.PhysicsNode{ID: string(rune('a' + i)), X: 50, Y: 50}
	}
	p := params()
	p.CenterStrength = 0

	require.NoError(t, Apply(context.Background(), &Input{Nodes: nodes, Alpha: 1, Params: p}))
	integrate(nodes, 0.4)

	seen := map[[2]float64]bool{}
	for _, n := range nodes {
		key := [2]float64{n.X, n.Y}
		assert.False(t, seen[key], "node %s still coincident", n.ID)
		seen[key] = true
	}
}

func TestCharge_HugeCoincidentCoordinatesTerminate(t *testing.T) {
	for _, c := range []float64{1e15, 1e300, math.Inf(1)} {
		nodes := []types.PhysicsNode{{ID: "a"}, {ID: "b"}, {ID: "c", X: 10, Y: 10}}
		nodes[0].Pin(c, c)
		nodes[1].Pin(c, c)
		p := params()
		p.CollisionStrength = 0

		done := make(chan error, 1)
		go func() { done <- Apply(context.Background(), &Input{Nodes: nodes, Alpha: 1, Params: p}) }()
		select {
		case err := <-done:
			require.NoError(t, err, "coordinate %g", c)
		case <-time.After(5 * time.Second):
			t.Fatalf("charge did not return for coordinate %g", c)
		}
	}
}

func TestCharge_ExactSumFallbackIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetBase(zap.New(core))
	t.Cleanup(func() { logging.SetBase(nil) })

	nodes := []types.PhysicsNode{{ID: "a", X: math.Inf(1)}, {ID: "b", X: 1, Y: 1}}
	require.NoError(t, Apply(context.Background(), &Input{Nodes: nodes, Alpha: 1, Params: params()}))

	force := logs.FilterLoggerName(string(logging.CategoryForce)).All()
	require.NotEmpty(t, force)
	assert.Contains(t, force[0].Message, "brute-force fallback")
}

func TestBodies_SeparatesLargeCoordinates(t *testing.T) {
	in := &Input{Nodes: []types.PhysicsNode{
		{ID: "a", X: 1e15, Y: 1e15},
		{ID: "b", X: 1e15, Y: 1e15},
		{ID: "c", X: 1e15, Y: 1e15},
	}}
	particles, ok := bodies(in)
	require.True(t, ok)
	seen := map[r2.Vec]bool{}
	for _, p := range particles {
		assert.False(t, seen[p.Coord2()], "duplicate %v", p.Coord2())
		seen[p.Coord2()] = true
	}

	in.Nodes[0].X, in.Nodes[0].Y = 1e300, 1e300
	in.Nodes[1].X, in.Nodes[1].Y = 1e300, 1e300
	_, ok = bodies(in)
	assert.False(t, ok, "spacing at 1e300 exceeds any nudge")

	in.Nodes[0].X = math.Inf(1)
	in.Nodes[1].X = math.Inf(1)
	particles, ok = bodies(in)
	assert.False(t, ok, "non-finite nodes cannot go into a tree")
	assert.Len(t, particles, 3)
}

func TestCharge_ParallelMatchesSequential(t *testing.T) {
	build := func() []types.PhysicsNode {
		nodes := make([]types.PhysicsNode, 64)
		for i := range nodes {
			nodes[i] = types.PhysicsNode{
				ID: string(rune('A' + i)),
				X:  float64(i%8) * 37,
				Y:  float64(i/8) * 23,
			}
		}
		return nodes
	}
	p := params()
	p.CenterStrength = 0
	p.CollisionStrength = 0

	seq := build()
	require.NoError(t, Apply(context.Background(), &Input{Nodes: seq, Alpha: 0.5, Params: p}))

	p.ParallelThreshold = 10
	p.Workers = 4
	par := build()
	require.NoError(t, Apply(context.Background(), &Input{Nodes: par, Alpha: 0.5, Params: p}))

	for i := range seq {
		assert.InDelta(t, seq[i].VX, par[i].VX, 1e-12)
		assert.InDelta(t, seq[i].VY, par[i].VY, 1e-12)
	}
}

func TestCharge_CancelledContext(t *testing.T) {
	nodes := make([]types.PhysicsNode, 20)
	for i := range nodes {
		nodes[i] = types.PhysicsNode{ID: string(rune('a' + i)), X: float64(i), Y: float64(i * i)}
	}
	p := params()
	p.ParallelThreshold = 2
	p.Workers = 4

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Apply(ctx, &Input{Nodes: nodes, Alpha: 1, Params: p}), context.Canceled)
}

func TestLinks_PullTowardDistance(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 300, Y: 0}}
	in := &Input{
		Nodes: nodes,
		Links: []Link{{Source: 0, Target: 1, Strength: 1, Distance: 100}},
		Alpha: 1,
	}
	applyLinks(in)
	assert.Greater(t, nodes[0].VX, 0.0)
	assert.Less(t, nodes[1].VX, 0.0)
	assert.InDelta(t, 200.0, nodes[0].VX-nodes[1].VX, 1e-9)
}

func TestLinks_PinnedEndpointTakesNoCorrection(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a"}, {ID: "b", X: 300}}
	nodes[0].Pin(0, 0)
	in := &Input{
		Nodes: nodes,
		Links: []Link{{Source: 0, Target: 1, Strength: 1, Distance: 100}},
		Alpha: 1,
	}
	applyLinks(in)
	assert.Zero(t, nodes[0].VX)
	assert.InDelta(t, -200.0, nodes[1].VX, 1e-9)
}

func TestLinks_StrengthAboveOnePullsHarder(t *testing.T) {
	tests := []struct {
		strength float64
		want     float64
	}{
		{0.5, -50},
		{1, -100},
		{1.8, -180},
		{3, -200}, // capped at the full gap
	}
	for _, tt := range tests {
		nodes := []types.PhysicsNode{{ID: "a"}, {ID: "b", X: 200}}
		nodes[0].Pin(0, 0)
		applyLinks(&Input{
			Nodes: nodes,
			Links: []Link{{Source: 0, Target: 1, Strength: tt.strength, Distance: 100}},
			Alpha: 1,
		})
		assert.InDelta(t, tt.want, nodes[1].VX, 1e-9, "strength %g", tt.strength)
	}
}

func TestCenter(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a", X: 0, Y: 0}, {ID: "b"}}
	nodes[1].Pin(0, 0)
	in := &Input{Nodes: nodes, Alpha: 0.5, Params: Params{CenterStrength: 0.1, CenterX: 100, CenterY: 50}}
	applyCenter(in)
	assert.InDelta(t, 5.0, nodes[0].VX, 1e-12)
	assert.InDelta(t, 2.5, nodes[0].VY, 1e-12)
	assert.Zero(t, nodes[1].VX)
}

func TestCollision_ReachesMinimumSeparation(t *testing.T) {
	nodes := []types.PhysicsNode{
		{ID: "a", X: 100, Y: 100},
		{ID: "b", X: 105, Y: 100},
		{ID: "c", X: 100, Y: 104},
		{ID: "d", X: 100, Y: 100},
	}
	p := params()
	p.ChargeStrength = 0
	p.CenterStrength = 0
	p.Spacing.DensityAdaptation = false

	for tick := 0; tick < 300; tick++ {
		in := &Input{Nodes: nodes, Alpha: 0, Tick: uint64(tick), Params: p}
		require.NoError(t, Apply(context.Background(), in))
		integrate(nodes, 0.4)
	}
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			assert.GreaterOrEqual(t, dist(nodes[i], nodes[j]), p.Spacing.MinNodeSeparation-0.5,
				"%s-%s", nodes[i].ID, nodes[j].ID)
		}
	}
}

func TestCollision_ClusterSpacing(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 70, Y: 0}}
	p := params()
	in := &Input{Nodes: nodes, Clusters: []int{0, 1}, Radii: []float64{30, 30}, Params: p}
	applyCollision(in)
	assert.Less(t, nodes[0].VX, 0.0, "different clusters need 110 apart")

	nodes = []types.PhysicsNode{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 70, Y: 0}}
	in = &Input{Nodes: nodes, Clusters: []int{0, 0}, Radii: []float64{30, 30}, Params: p}
	applyCollision(in)
	assert.Zero(t, nodes[0].VX, "same cluster is already far enough")
}

func TestCollision_PinnedPairUntouched(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a"}, {ID: "b"}, {ID: "c", X: 1}}
	nodes[0].Pin(0, 0)
	nodes[1].Pin(1, 0)
	in := &Input{Nodes: nodes, Params: params()}
	require.NoError(t, Apply(context.Background(), in))

	assert.Zero(t, nodes[0].VX)
	assert.Zero(t, nodes[1].VX)
	assert.NotZero(t, nodes[2].VX)
}

func TestCollision_SampledStillResolves(t *testing.T) {
	nodes := []types.PhysicsNode{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 10, Y: 0}, {ID: "c", X: 20, Y: 0}}
	p := params()
	p.ChargeStrength = 0
	p.CenterStrength = 0
	p.SampleRate = 0.5
	p.Spacing.DensityAdaptation = false

	for tick := 0; tick < 400; tick++ {
		require.NoError(t, Apply(context.Background(), &Input{Nodes: nodes, Tick: uint64(tick), Params: p}))
		integrate(nodes, 0.4)
	}
	assert.GreaterOrEqual(t, dist(nodes[0], nodes[1]), 59.5)
	assert.GreaterOrEqual(t, dist(nodes[1], nodes[2]), 59.5)
}
