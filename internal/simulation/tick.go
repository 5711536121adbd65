package simulation

import (
	"context"
	"math"
	"time"

	"taskmap/internal/force"
	"taskmap/internal/logging"
)

// Tick advances the simulation by one step while it is running. It returns
// false without doing anything when the simulation is not running, is
// frozen by the governor, is inside its tick-rate cap, or is already
// ticking (a callback calling Tick lands here).
func (s *Simulation) Tick() bool {
	return s.tickOnce(false)
}

// tickOnce runs one tick. fromLoop marks ticks driven by the frame loop
// goroutine so Stop knows its callbacks may be running on it.
func (s *Simulation) tickOnce(fromLoop bool) bool {
	if !s.tickMu.TryLock() {
		s.report(ErrTickInProgress)
		return false
	}
	defer s.tickMu.Unlock()

	s.mu.Lock()
	if !s.tickableLocked() {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	if limit := s.cfg.Performance.TickRateCap; limit > 0 && !s.lastTick.IsZero() {
		if now.Sub(s.lastTick) < time.Duration(float64(time.Second)/limit) {
			s.mu.Unlock()
			return false
		}
	}
	s.lastTick = now

	started := time.Now()
	reset, stepErr := s.stepLocked()
	cooled := false
	if s.alpha <= s.cfg.Simulation.AlphaMin {
		s.state = StateCooled
		if !s.endFired {
			s.endFired = true
			cooled = true
		}
	}
	stats := TickStats{
		Tick:      s.tick,
		Alpha:     s.alpha,
		Duration:  time.Since(started),
		NodeCount: len(s.nodes),
		LinkCount: len(s.resolved),
		Cooled:    cooled,
	}
	snap := s.snapshotLocked()
	gen := s.gen
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	s.report(stepErr)
	if reset != nil {
		s.report(reset)
	}
	for _, o := range observers {
		o.ObserveTick(stats)
	}

	if fromLoop {
		s.loopCallback.Store(true)
		defer s.loopCallback.Store(false)
	}
	gate := func() bool { return s.generation() == gen }
	s.ticks.EmitGated(snap, gate)
	if cooled {
		logging.Simulation("cooled after %d ticks (alpha=%.5f)", stats.Tick, stats.Alpha)
		s.ends.EmitGated(snap, gate)
	}
	return true
}

func (s *Simulation) tickableLocked() bool {
	if s.state != StateRunning {
		return false
	}
	return !s.cfg.Performance.Frozen || s.thawed
}

// stepLocked decays alpha, applies forces and integrates positions.
func (s *Simulation) stepLocked() (*NumericError, error) {
	s.tick++
	sim := s.cfg.Simulation
	s.alpha += (sim.AlphaTarget - s.alpha) * sim.AlphaDecay
	if len(s.nodes) == 0 {
		return nil, nil
	}

	if interval := s.cfg.Performance.SpacingInterval; interval <= 1 || s.tick%uint64(interval) == 0 {
		s.refreshSpacingLocked()
	}

	links := make([]force.Link, len(s.resolved))
	for i, l := range s.resolved {
		links[i] = force.Link{Source: l.source, Target: l.target, Strength: l.strength, Distance: l.distance}
	}
	in := &force.Input{
		Nodes:    s.nodes,
		Links:    links,
		Radii:    s.radii,
		Clusters: s.clusters,
		Alpha:    s.alpha,
		Tick:     s.tick,
		Params:   force.ParamsFrom(s.cfg),
	}
	err := force.Apply(context.Background(), in)
	return s.integrateLocked(), err
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *Simulation) integrateLocked() *NumericError {
	keep := 1 - s.cfg.Simulation.VelocityDecay
	var bad []string
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.Pinned() {
			n.X, n.Y = *n.FX, *n.FY
			n.VX, n.VY = 0, 0
			continue
		}
		n.VX *= keep
		n.VY *= keep
		n.X += n.VX
		n.Y += n.VY
		if finite(n.X) && finite(n.Y) && finite(n.VX) && finite(n.VY) {
			continue
		}
		dx, dy := force.Jitter(n.ID, "")
		n.X = s.cfg.Dimensions.Width/2 + dx*1e3
		n.Y = s.cfg.Dimensions.Height/2 + dy*1e3
		n.VX, n.VY = 0, 0
		bad = append(bad, n.ID)
	}
	if len(bad) == 0 {
		return nil
	}
	return &NumericError{Tick: s.tick, Nodes: bad}
}
