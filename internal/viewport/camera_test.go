package viewport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"taskmap/internal/frame"
)

type recordingTarget struct {
	mu     sync.Mutex
	v      Viewport
	writes []Viewport
}

func (r *recordingTarget) Viewport() Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.v
}

func (r *recordingTarget) SetViewport(v Viewport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v = v
	r.writes = append(r.writes, v)
}

func (r *recordingTarget) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func TestCamera_SnapsSmallMoves(t *testing.T) {
	target := &recordingTarget{v: Viewport{Zoom: 1}}
	cam := NewCamera(target)

	cam.TransitionToViewport(Viewport{X: 10, Y: 10, Zoom: 1}, time.Second, nil)
	assert.False(t, cam.Active())
	assert.Equal(t, Viewport{X: 10, Y: 10, Zoom: 1}, target.Viewport())

	cam.TransitionToViewport(Viewport{X: 500, Zoom: 1}, 0, nil)
	assert.False(t, cam.Active())
	assert.Equal(t, 500.0, target.Viewport().X)
}

func TestCamera_StepInterpolates(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	target := &recordingTarget{v: Viewport{Zoom: 1}}
	cam := NewCamera(target, WithCameraClock(clock.Now))

	goal := Viewport{X: 1000, Y: 0, Zoom: 2}
	cam.TransitionToViewport(goal, time.Second, Linear)
	require.True(t, cam.Active())
	assert.Zero(t, target.count(), "nothing is written until the first frame")

	assert.True(t, cam.Step(clock.Advance(250*time.Millisecond)))
	assert.InDelta(t, 250, target.Viewport().X, 1e-9)
	assert.InDelta(t, 1.25, target.Viewport().Zoom, 1e-9)

	assert.False(t, cam.Step(clock.Advance(time.Second)))
	assert.Equal(t, goal, target.Viewport())
	assert.False(t, cam.Active())
	assert.False(t, cam.Step(clock.Advance(time.Second)))
}

func TestCamera_SecondTransitionWins(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	target := &recordingTarget{v: Viewport{Zoom: 1}}
	cam := NewCamera(target, WithCameraClock(clock.Now))

	first := Viewport{X: 1000, Y: 1000, Zoom: 2}
	second := Viewport{X: -800, Y: 200, Zoom: 0.5}
	cam.TransitionToViewport(first, time.Second, EaseOut)
	cam.Step(clock.Advance(100 * time.Millisecond))
	cam.TransitionToViewport(second, time.Second, EaseOut)

	for cam.Step(clock.Advance(50 * time.Millisecond)) {
	}
	assert.Equal(t, second, target.Viewport())
}

func TestCamera_ClampsZoom(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	target := &recordingTarget{v: Viewport{Zoom: 1}}
	cam := NewCamera(target, WithCameraClock(clock.Now), WithZoomRange(0.5, 2))

	cam.TransitionToViewport(Viewport{Zoom: 10}, time.Second, Linear)
	for cam.Step(clock.Advance(100 * time.Millisecond)) {
	}
	for _, w := range target.writes {
		assert.GreaterOrEqual(t, w.Zoom, 0.5)
		assert.LessOrEqual(t, w.Zoom, 2.0)
	}
	assert.Equal(t, 2.0, target.Viewport().Zoom)
}

func TestCamera_FrameSourceDrivesTransition(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &fakeClock{now: time.Unix(0, 0)}
	src := frame.NewManual()
	target := &recordingTarget{v: Viewport{Zoom: 1}}
	cam := NewCamera(target, WithFrameSource(src), WithCameraClock(clock.Now))

	goal := Viewport{X: 600, Y: 600, Zoom: 1.5}
	cam.TransitionToViewport(goal, 500*time.Millisecond, EaseInOut)
	for i := 0; i < 10 && cam.Active(); i++ {
		clock.Advance(100 * time.Millisecond)
		src.Fire(clock.Now())
	}
	require.Eventually(t, func() bool { return target.Viewport() == goal }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return src.Subscribers() == 0 }, time.Second, time.Millisecond)
}

func TestCamera_CancelStopsWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &fakeClock{now: time.Unix(0, 0)}
	src := frame.NewManual()
	target := &recordingTarget{v: Viewport{Zoom: 1}}
	cam := NewCamera(target, WithFrameSource(src), WithCameraClock(clock.Now))

	cam.TransitionToViewport(Viewport{X: 5000, Zoom: 1}, 10*time.Second, Linear)
	clock.Advance(time.Second)
	src.Fire(clock.Now())

	cam.CancelTransition()
	writes := target.count()
	assert.False(t, cam.Active())
	assert.Zero(t, src.Subscribers())

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		src.Fire(clock.Now())
	}
	assert.Equal(t, writes, target.count())

	cam.CancelTransition()
}

func TestCamera_ReplacingTransitionCancelsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := &fakeClock{now: time.Unix(0, 0)}
	src := frame.NewManual()
	target := &recordingTarget{v: Viewport{Zoom: 1}}
	cam := NewCamera(target, WithFrameSource(src), WithCameraClock(clock.Now))

	first := Viewport{X: 3000, Y: 0, Zoom: 1}
	second := Viewport{X: 0, Y: 3000, Zoom: 1}
	cam.TransitionToViewport(first, time.Second, Linear)
	clock.Advance(100 * time.Millisecond)
	src.Fire(clock.Now())

	cam.TransitionToViewport(second, time.Second, Linear)
	assert.Equal(t, 1, src.Subscribers(), "only one transition subscribes")

	for i := 0; i < 20 && cam.Active(); i++ {
		clock.Advance(100 * time.Millisecond)
		src.Fire(clock.Now())
	}
	require.Eventually(t, func() bool { return target.Viewport() == second }, time.Second, time.Millisecond)
	cam.CancelTransition()
}

func TestStaticTarget(t *testing.T) {
	st := NewStaticTarget(Viewport{Zoom: 1})
	st.SetViewport(Viewport{X: 1, Y: 2, Zoom: 3})
	assert.Equal(t, Viewport{X: 1, Y: 2, Zoom: 3}, st.Viewport())
}
