// Package simulation runs the force-directed layout: it owns node state,
// advances it one tick at a time and reports progress to subscribers.
package simulation

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"taskmap/internal/config"
	"taskmap/internal/frame"
	"taskmap/internal/logging"
	"taskmap/internal/notify"
	"taskmap/internal/types"
)

// State is the lifecycle state of a simulation.
type State int

const (
	StateIdle    State = iota // constructed, never started
	StateRunning              // ticking
	StateCooled               // alpha fell to alpha_min
	StateStopped              // stopped by the host
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCooled:
		return "cooled"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TickStats summarizes one completed tick.
type TickStats struct {
	Tick      uint64
	Alpha     float64
	Duration  time.Duration
	NodeCount int
	LinkCount int
	Cooled    bool
}

// Observer is called synchronously after every completed tick and before
// the next one can begin. Observers run outside the simulation lock and
// may call back into the simulation.
type Observer interface {
	ObserveTick(stats TickStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(TickStats)

// ObserveTick implements Observer.
func (f ObserverFunc) ObserveTick(s TickStats) { f(s) }

// Option configures a Simulation.
type Option func(*Simulation)

// WithFrameSource makes Start drive ticks from src on a background
// goroutine. Without one the host calls Tick itself.
func WithFrameSource(src frame.Source) Option {
	return func(s *Simulation) { s.src = src }
}

// WithObserver registers a tick observer.
func WithObserver(o Observer) Option {
	return func(s *Simulation) { s.observers = append(s.observers, o) }
}

// WithDiagnostics routes non-fatal errors (unknown ids, numeric resets,
// re-entrant ticks) to fn in addition to the log.
func WithDiagnostics(fn func(error)) Option {
	return func(s *Simulation) { s.diag = fn }
}

// WithClock replaces the clock used for tick-rate capping.
func WithClock(now func() time.Time) Option {
	return func(s *Simulation) { s.now = now }
}

// Simulation is a force-directed layout over a set of nodes and links.
// All methods are safe for concurrent use; ticks never overlap.
type Simulation struct {
	mu     sync.Mutex
	tickMu sync.Mutex

	cfg      config.ForceLayoutConfig
	nodes    []types.PhysicsNode
	index    map[string]int
	links    []types.PhysicsLink
	resolved []resolvedLink
	clusters []int
	radii    []float64
	activeID string

	alpha    float64
	state    State
	tick     uint64
	endFired bool
	thawed   bool
	lastTick time.Time
	gen      uint64

	src          frame.Source
	loopCancel   chan struct{}
	loopDone     chan struct{}
	exiting      chan struct{}
	loopCallback atomic.Bool

	ticks     notify.Dispatcher[[]types.PhysicsNode]
	ends      notify.Dispatcher[[]types.PhysicsNode]
	observers []Observer
	diag      func(error)
	now       func() time.Time
}

// New creates an idle simulation with no nodes and alpha 1.
func New(cfg config.ForceLayoutConfig, opts ...Option) *Simulation {
	s := &Simulation{
		cfg:   cfg,
		index: make(map[string]int),
		alpha: 1,
		state: StateIdle,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetConfig swaps the configuration used from the next tick on.
func (s *Simulation) SetConfig(cfg config.ForceLayoutConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	if cfg.Performance.Frozen && !prev.Performance.Frozen {
		s.thawed = false
	}
	if cfg.SmartSpacing.ClusterBy != prev.SmartSpacing.ClusterBy {
		s.rebuildClustersLocked()
	}
	s.refreshSpacingLocked()
}

// Config returns the configuration in use.
func (s *Simulation) Config() config.ForceLayoutConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start begins ticking. A cooled simulation stays cooled until alpha is
// raised; a running one is left alone.
func (s *Simulation) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		if s.alpha <= s.cfg.Simulation.AlphaMin {
			s.state = StateCooled
		} else {
			s.state = StateRunning
			s.endFired = false
		}
	}
	s.ensureLoopLocked()
	logging.SimulationDebug("start: state=%s alpha=%.4f nodes=%d", s.state, s.alpha, len(s.nodes))
}

// Stop halts ticking. Once Stop returns no further tick or end callback of
// this simulation will begin. Stop may be called from inside a callback.
//
// Stop normally returns after the frame loop goroutine has exited. While
// the loop is delivering callbacks it cannot tell whether its caller is
// that goroutine, so it returns without joining; the loop exits as soon
// as the running callback returns, and Wait joins it.
func (s *Simulation) Stop() {
	s.mu.Lock()
	s.state = StateStopped
	s.gen++
	cancel, done := s.loopCancel, s.loopDone
	s.loopCancel, s.loopDone = nil, nil
	if done != nil {
		s.exiting = done
	}
	s.mu.Unlock()

	if cancel != nil {
		close(cancel)
		if !s.loopCallback.Load() {
			<-done
		}
	}
	logging.SimulationDebug("stop")
}

// Wait blocks until the frame loop goroutine halted by the latest Stop has
// exited. It returns at once when no loop was running. Calling Wait from a
// tick or end callback deadlocks.
func (s *Simulation) Wait() {
	s.mu.Lock()
	done := s.exiting
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Restart resets alpha to 1 and resumes ticking, overriding a governor
// freeze until the next one.
func (s *Simulation) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alpha = 1
	s.endFired = false
	s.thawed = true
	s.state = StateRunning
	s.ensureLoopLocked()
	logging.SimulationDebug("restart: nodes=%d", len(s.nodes))
}

// Alpha returns the current alpha.
func (s *Simulation) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// SetAlpha sets alpha, clamped to [0, 1]. Raising a cooled simulation above
// alpha_min resumes it.
func (s *Simulation) SetAlpha(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alpha = v
	if s.state == StateCooled && v > s.cfg.Simulation.AlphaMin {
		s.state = StateRunning
		s.endFired = false
		s.ensureLoopLocked()
	}
}

// State returns the lifecycle state.
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TickCount returns the number of completed ticks.
func (s *Simulation) TickCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// OnTick registers fn to receive node positions after every tick.
func (s *Simulation) OnTick(fn func([]types.PhysicsNode)) (unsubscribe func()) {
	return s.ticks.Subscribe(fn)
}

// OnEnd registers fn to be called once each time the simulation cools.
func (s *Simulation) OnEnd(fn func([]types.PhysicsNode)) (unsubscribe func()) {
	return s.ends.Subscribe(fn)
}

func (s *Simulation) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Simulation) report(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		logging.Get(logging.CategorySimulation).Warn("%v", err)
		if s.diag != nil {
			s.diag(err)
		}
	}
}

func (s *Simulation) ensureLoopLocked() {
	if s.src == nil || s.loopDone != nil {
		return
	}
	cancel, done := make(chan struct{}), make(chan struct{})
	s.loopCancel, s.loopDone = cancel, done
	frames, stop := s.src.Subscribe()
	go s.run(frames, stop, cancel, done)
}

func (s *Simulation) run(frames <-chan time.Time, stop func(), cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer stop()
	for {
		select {
		case <-cancel:
			return
		case _, ok := <-frames:
			if !ok {
				return
			}
			select {
			case <-cancel:
				return
			default:
			}
			s.tickOnce(true)
		}
	}
}
