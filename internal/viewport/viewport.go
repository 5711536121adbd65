// Package viewport computes target viewports that frame the active task
// and animates the camera toward them.
package viewport

import (
	"errors"
	"math"

	"taskmap/internal/config"
	"taskmap/internal/types"
)

// Viewport is a pan/zoom state: X and Y are the world coordinates shown
// at the center of the surface.
type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// ErrViewportUnavailable is matched by every ViewportUnavailableError.
var ErrViewportUnavailable = errors.New("viewport unavailable")

// ViewportUnavailableError explains why no viewport could be computed. The
// caller keeps its prior viewport.
type ViewportUnavailableError struct {
	Reason string
	ID     string
}

func (e *ViewportUnavailableError) Error() string {
	if e.ID != "" {
		return "viewport unavailable: " + e.Reason + ": " + e.ID
	}
	return "viewport unavailable: " + e.Reason
}

// Is reports whether target is ErrViewportUnavailable.
func (e *ViewportUnavailableError) Is(target error) bool {
	return target == ErrViewportUnavailable
}

// Surface reports the size of the rendering surface. ok is false when no
// surface is attached.
type Surface interface {
	Dimensions() (width, height float64, ok bool)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func() (float64, float64, bool)

// Dimensions implements Surface.
func (f SurfaceFunc) Dimensions() (float64, float64, bool) { return f() }

// Options controls framing.
type Options struct {
	IncludeRelatedTasks bool
	Padding             float64
	NodeSize            float64
	MinZoom             float64
	MaxZoom             float64
	Width               float64
	Height              float64
}

// OptionsFrom builds framing options from cfg, taking the surface size
// from surface when one is attached and from cfg.Dimensions otherwise.
func OptionsFrom(cfg config.ForceLayoutConfig, surface Surface) Options {
	v := cfg.Viewport
	o := Options{
		IncludeRelatedTasks: v.IncludeRelatedTasks,
		Padding:             v.Padding,
		NodeSize:            v.NodeSize,
		MinZoom:             v.MinZoom,
		MaxZoom:             v.MaxZoom,
		Width:               cfg.Dimensions.Width,
		Height:              cfg.Dimensions.Height,
	}
	if surface != nil {
		if w, h, ok := surface.Dimensions(); ok && w > 0 && h > 0 {
			o.Width, o.Height = w, h
		}
	}
	return o
}

// ClampZoom limits z to [o.MinZoom, o.MaxZoom].
func (o Options) ClampZoom(z float64) float64 {
	if o.MaxZoom > 0 && z > o.MaxZoom {
		z = o.MaxZoom
	}
	if z < o.MinZoom {
		z = o.MinZoom
	}
	return z
}

// CalculateOptimalViewport frames the active node and, when
// IncludeRelatedTasks is set, its direct dependencies and dependents.
// current supplies the zoom when the framed set has no extent and no
// maximum zoom is set.
func CalculateOptimalViewport(nodes []types.PhysicsNode, links []types.PhysicsLink, activeID string, current Viewport, opts Options) (*Viewport, error) {
	if activeID == "" {
		return nil, &ViewportUnavailableError{Reason: "no active task"}
	}
	byID := make(map[string]*types.PhysicsNode, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}
	active, ok := byID[activeID]
	if !ok {
		return nil, &ViewportUnavailableError{Reason: "active task not in layout", ID: activeID}
	}

	set := []*types.PhysicsNode{active}
	if opts.IncludeRelatedTasks {
		seen := map[string]bool{activeID: true}
		for _, l := range links {
			var other string
			switch activeID {
			case l.Source:
				other = l.Target
			case l.Target:
				other = l.Source
			default:
				continue
			}
			if n, ok := byID[other]; ok && !seen[other] {
				seen[other] = true
				set = append(set, n)
			}
		}
	}
	return fitBounds(set, current, opts)
}

// CalculateFitViewport frames the nodes named by ids, or every node when ids
// is empty.
func CalculateFitViewport(ids []string, nodes []types.PhysicsNode, opts Options) (*Viewport, error) {
	var set []*types.PhysicsNode
	if len(ids) == 0 {
		for i := range nodes {
			set = append(set, &nodes[i])
		}
	} else {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		for i := range nodes {
			if want[nodes[i].ID] {
				set = append(set, &nodes[i])
			}
		}
	}
	if len(set) == 0 {
		return nil, &ViewportUnavailableError{Reason: "no nodes to fit"}
	}
	return fitBounds(set, Viewport{Zoom: 1}, opts)
}

func fitBounds(set []*types.PhysicsNode, current Viewport, opts Options) (*Viewport, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, &ViewportUnavailableError{Reason: "no rendering surface"}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range set {
		minX, maxX = math.Min(minX, n.X), math.Max(maxX, n.X)
		minY, maxY = math.Min(minY, n.Y), math.Max(maxY, n.Y)
	}
	margin := opts.NodeSize + opts.Padding
	w := maxX - minX + 2*margin
	h := maxY - minY + 2*margin

	zx, zy := math.Inf(1), math.Inf(1)
	if w > 0 {
		zx = opts.Width / w
	}
	if h > 0 {
		zy = opts.Height / h
	}
	zoom := math.Min(zx, zy)
	if math.IsInf(zoom, 1) {
		// A single point with no margin: as close as allowed.
		zoom = current.Zoom
		if opts.MaxZoom > 0 {
			zoom = opts.MaxZoom
		}
	}
	return &Viewport{
		X:    (minX + maxX) / 2,
		Y:    (minY + maxY) / 2,
		Zoom: opts.ClampZoom(zoom),
	}, nil
}

// Animation thresholds for ShouldAnimateTransition.
const (
	PositionThreshold = 50
	ZoomThreshold     = 0.1
)

// ShouldAnimateTransition reports whether moving from one viewport to the
// other is large enough to animate rather than snap.
func ShouldAnimateTransition(from, to Viewport) bool {
	return math.Hypot(to.X-from.X, to.Y-from.Y) > PositionThreshold ||
		math.Abs(to.Zoom-from.Zoom) > ZoomThreshold
}

// Lerp interpolates between two viewports.
func Lerp(from, to Viewport, t float64) Viewport {
	return Viewport{
		X:    from.X + (to.X-from.X)*t,
		Y:    from.Y + (to.Y-from.Y)*t,
		Zoom: from.Zoom + (to.Zoom-from.Zoom)*t,
	}
}
