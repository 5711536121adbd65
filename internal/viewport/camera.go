package viewport

import (
	"sync"
	"time"

	"taskmap/internal/frame"
	"taskmap/internal/logging"
)

// Target is the rendering-side viewport the camera drives. Implementations
// must not call back into the Camera from SetViewport.
type Target interface {
	Viewport() Viewport
	SetViewport(Viewport)
}

// StaticTarget is an in-memory Target, used headless and in tests.
type StaticTarget struct {
	mu sync.Mutex
	v  Viewport
}

// NewStaticTarget creates a target starting at v.
func NewStaticTarget(v Viewport) *StaticTarget {
	return &StaticTarget{v: v}
}

// Viewport implements Target.
func (t *StaticTarget) Viewport() Viewport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.v
}

// SetViewport implements Target.
func (t *StaticTarget) SetViewport(v Viewport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.v = v
}

type transition struct {
	from, to Viewport
	start    time.Time
	duration time.Duration
	easing   Easing
	stop     chan struct{}
	done     chan struct{}
}

// CameraOption configures a Camera.
type CameraOption func(*Camera)

// WithFrameSource animates transitions on a goroutine driven by src.
// Without one the host advances transitions with Step.
func WithFrameSource(src frame.Source) CameraOption {
	return func(c *Camera) { c.src = src }
}

// WithZoomRange sets the zoom bounds every write is clamped to.
func WithZoomRange(lo, hi float64) CameraOption {
	return func(c *Camera) { c.minZoom, c.maxZoom = lo, hi }
}

// WithCameraClock replaces the transition clock.
func WithCameraClock(now func() time.Time) CameraOption {
	return func(c *Camera) { c.now = now }
}

// Camera is the single writer of a Target's viewport. At most one
// transition is active; starting another cancels it first.
type Camera struct {
	mu      sync.Mutex
	target  Target
	src     frame.Source
	now     func() time.Time
	minZoom float64
	maxZoom float64
	cur     *transition
	gen     uint64
}

// NewCamera creates a camera driving target.
func NewCamera(target Target, opts ...CameraOption) *Camera {
	c := &Camera{target: target, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Target returns the driven target.
func (c *Camera) Target() Target { return c.target }

// SetZoomRange updates the zoom bounds.
func (c *Camera) SetZoomRange(lo, hi float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minZoom, c.maxZoom = lo, hi
}

func (c *Camera) clampLocked(v Viewport) Viewport {
	o := Options{MinZoom: c.minZoom, MaxZoom: c.maxZoom}
	v.Zoom = o.ClampZoom(v.Zoom)
	return v
}

// TransitionToViewport moves the target to v. Small moves, and a
// non-positive duration, snap immediately; otherwise the move is animated
// over d with easing (ease-out when nil). Any in-flight transition is
// cancelled first and never writes again.
func (c *Camera) TransitionToViewport(v Viewport, d time.Duration, easing Easing) {
	c.CancelTransition()
	if easing == nil {
		easing = EaseOut
	}

	c.mu.Lock()
	to := c.clampLocked(v)
	from := c.target.Viewport()
	if d <= 0 || !ShouldAnimateTransition(from, to) {
		c.target.SetViewport(to)
		c.mu.Unlock()
		return
	}
	t := &transition{from: from, to: to, start: c.now(), duration: d, easing: easing}
	c.cur = t
	gen := c.gen
	if c.src != nil {
		t.stop, t.done = make(chan struct{}), make(chan struct{})
		frames, stop := c.src.Subscribe()
		go c.animate(t, gen, frames, stop)
	}
	c.mu.Unlock()
	logging.ViewportDebug("transition to (%.1f, %.1f) zoom %.3f over %s", to.X, to.Y, to.Zoom, d)
}

// CancelTransition stops the active transition. No viewport write from it
// happens after CancelTransition returns.
func (c *Camera) CancelTransition() {
	c.mu.Lock()
	t := c.cur
	c.cur = nil
	c.gen++
	c.mu.Unlock()

	if t != nil && t.stop != nil {
		close(t.stop)
		<-t.done
	}
}

// Active reports whether a transition is in flight.
func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur != nil
}

// Step advances the active transition to now and reports whether it is
// still running. Hosts without a frame source call it once per frame.
func (c *Camera) Step(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return false
	}
	return c.advanceLocked(c.cur, now)
}

func (c *Camera) advanceLocked(t *transition, now time.Time) bool {
	p := float64(now.Sub(t.start)) / float64(t.duration)
	if p >= 1 {
		c.target.SetViewport(t.to)
		if c.cur == t {
			c.cur = nil
		}
		return false
	}
	if p < 0 {
		p = 0
	}
	c.target.SetViewport(c.clampLocked(Lerp(t.from, t.to, t.easing(p))))
	return true
}

func (c *Camera) animate(t *transition, gen uint64, frames <-chan time.Time, stop func()) {
	defer close(t.done)
	defer stop()
	for {
		select {
		case <-t.stop:
			return
		case _, ok := <-frames:
			if !ok {
				return
			}
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			running := c.advanceLocked(t, c.now())
			c.mu.Unlock()
			if !running {
				return
			}
		}
	}
}
