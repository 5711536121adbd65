package viewport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmap/internal/config"
	"taskmap/internal/types"
)

func opts() Options {
	return Options{
		IncludeRelatedTasks: true,
		Padding:             40,
		NodeSize:            40,
		MinZoom:             0.1,
		MaxZoom:             2.5,
		Width:               1200,
		Height:              800,
	}
}

func sampleGraph() ([]types.PhysicsNode, []types.PhysicsLink) {
	nodes := []types.PhysicsNode{
		{ID: "a", X: 0, Y: 0},
		{ID: "b", X: 400, Y: 0},
		{ID: "c", X: 400, Y: 300},
		{ID: "far", X: 5000, Y: 5000},
	}
	links := []types.PhysicsLink{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
	}
	return nodes, links
}

func TestCalculateOptimalViewport_Unknown(t *testing.T) {
	nodes, links := sampleGraph()
	for _, id := range []string{"missing", ""} {
		v, err := CalculateOptimalViewport(nodes, links, id, Viewport{Zoom: 1}, opts())
		assert.Nil(t, v)
		assert.True(t, errors.Is(err, ErrViewportUnavailable), id)

		var vue *ViewportUnavailableError
		require.True(t, errors.As(err, &vue))
		assert.Equal(t, id, vue.ID)
	}
}

func TestCalculateOptimalViewport_IncludesRelated(t *testing.T) {
	nodes, links := sampleGraph()
	v, err := CalculateOptimalViewport(nodes, links, "b", Viewport{Zoom: 1}, opts())
	require.NoError(t, err)

	// a, b and c span 400x300; a 160 margin gives 560x460.
	assert.InDelta(t, 200, v.X, 1e-9)
	assert.InDelta(t, 150, v.Y, 1e-9)
	assert.InDelta(t, 800.0/460.0, v.Zoom, 1e-9)
}

func TestCalculateOptimalViewport_SingleNode(t *testing.T) {
	nodes, links := sampleGraph()
	o := opts()
	o.IncludeRelatedTasks = false
	v, err := CalculateOptimalViewport(nodes, links, "far", Viewport{Zoom: 1}, o)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, v.X)
	assert.Equal(t, 5000.0, v.Y)
	assert.Equal(t, o.MaxZoom, v.Zoom, "a 160 unit box would zoom to 5")
}

func TestCalculateOptimalViewport_ZoomNonIncreasingWithMargin(t *testing.T) {
	nodes, links := sampleGraph()
	o := opts()
	o.IncludeRelatedTasks = false
	o.Padding = 0

	prev := o.MaxZoom + 1
	for size := 0.0; size <= 5000; size += 50 {
		o.NodeSize = size
		v, err := CalculateOptimalViewport(nodes, links, "a", Viewport{Zoom: 1}, o)
		require.NoError(t, err)
		assert.LessOrEqual(t, v.Zoom, prev, "node size %v", size)
		assert.GreaterOrEqual(t, v.Zoom, o.MinZoom)
		assert.LessOrEqual(t, v.Zoom, o.MaxZoom)
		prev = v.Zoom
	}
	assert.Equal(t, o.MinZoom, prev, "very large margins floor at min zoom")
}

func TestCalculateOptimalViewport_Degenerate(t *testing.T) {
	nodes, links := sampleGraph()
	o := opts()
	o.IncludeRelatedTasks = false
	o.Padding, o.NodeSize = 0, 0

	v, err := CalculateOptimalViewport(nodes, links, "a", Viewport{Zoom: 1.7}, o)
	require.NoError(t, err)
	assert.Equal(t, o.MaxZoom, v.Zoom)

	o.MaxZoom = 0
	v, err = CalculateOptimalViewport(nodes, links, "a", Viewport{Zoom: 1.7}, o)
	require.NoError(t, err)
	assert.Equal(t, 1.7, v.Zoom, "without a cap the current zoom is kept")
}

func TestCalculateOptimalViewport_NoSurface(t *testing.T) {
	nodes, links := sampleGraph()
	o := opts()
	o.Width = 0
	v, err := CalculateOptimalViewport(nodes, links, "a", Viewport{}, o)
	assert.Nil(t, v)
	assert.ErrorIs(t, err, ErrViewportUnavailable)
}

func TestCalculateFitViewport(t *testing.T) {
	nodes, _ := sampleGraph()

	all, err := CalculateFitViewport(nil, nodes, opts())
	require.NoError(t, err)
	assert.InDelta(t, 2500, all.X, 1e-9)
	assert.InDelta(t, 800.0/5160.0, all.Zoom, 1e-9)

	subset, err := CalculateFitViewport([]string{"a", "b"}, nodes, opts())
	require.NoError(t, err)
	assert.InDelta(t, 200, subset.X, 1e-9)
	assert.InDelta(t, 0, subset.Y, 1e-9)
	assert.InDelta(t, 1200.0/560.0, subset.Zoom, 1e-9)

	none, err := CalculateFitViewport([]string{"ghost"}, nodes, opts())
	assert.Nil(t, none)
	assert.ErrorIs(t, err, ErrViewportUnavailable)
}

func TestOptionsFrom(t *testing.T) {
	cfg := config.DefaultConfig()

	o := OptionsFrom(cfg, nil)
	assert.Equal(t, 1200.0, o.Width)
	assert.Equal(t, 800.0, o.Height)
	assert.Equal(t, 2.5, o.MaxZoom)

	o = OptionsFrom(cfg, SurfaceFunc(func() (float64, float64, bool) { return 1920, 1080, true }))
	assert.Equal(t, 1920.0, o.Width)
	assert.Equal(t, 1080.0, o.Height)

	o = OptionsFrom(cfg, SurfaceFunc(func() (float64, float64, bool) { return 0, 0, false }))
	assert.Equal(t, 1200.0, o.Width, "detached surfaces fall back to configured dimensions")
}

func TestShouldAnimateTransition(t *testing.T) {
	base := Viewport{X: 0, Y: 0, Zoom: 1}
	assert.False(t, ShouldAnimateTransition(base, Viewport{X: 30, Y: 40, Zoom: 1}))
	assert.True(t, ShouldAnimateTransition(base, Viewport{X: 30, Y: 41, Zoom: 1}))
	assert.False(t, ShouldAnimateTransition(base, Viewport{Zoom: 1.05}))
	assert.True(t, ShouldAnimateTransition(base, Viewport{Zoom: 1.11}))
}

func TestEasings(t *testing.T) {
	for name, e := range easings {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, 0, e(0), 1e-12)
			assert.InDelta(t, 1, e(1), 1e-12)
			prev := 0.0
			for i := 1; i <= 100; i++ {
				v := e(float64(i) / 100)
				assert.GreaterOrEqual(t, v, prev-1e-12)
				prev = v
			}
		})
	}
	assert.InDelta(t, 0.5, EaseInOut(0.5), 1e-12)
	assert.Less(t, EaseIn(0.5), 0.5)
	assert.Greater(t, EaseOut(0.5), 0.5)

	e, err := ParseEasing("ease-in-out")
	require.NoError(t, err)
	assert.InDelta(t, EaseInOut(0.3), e(0.3), 1e-12)

	_, err = ParseEasing("bounce")
	assert.Error(t, err)

	for _, name := range config.ValidEasings {
		_, err := ParseEasing(name)
		assert.NoError(t, err, name)
	}
}
