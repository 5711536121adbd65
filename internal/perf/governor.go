// Package perf implements the performance governor: it samples tick
// durations and memory, and steps a cumulative throttle ladder up or down
// by rewriting the governor-owned performance settings.
package perf

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"taskmap/internal/config"
	"taskmap/internal/logging"
	"taskmap/internal/notify"
	"taskmap/internal/simulation"
)

// ErrResourceExhausted is reported when heap usage exceeds the configured
// memory limit.
var ErrResourceExhausted = errors.New("perf: resource limit exceeded")

// LoadClass classifies the last evaluation window.
type LoadClass string

const (
	LoadUnknown     LoadClass = "unknown"
	LoadUnderloaded LoadClass = "underloaded"
	LoadNominal     LoadClass = "nominal"
	LoadOverloaded  LoadClass = "overloaded"
)

// Snapshot is the governor's current view of performance.
type Snapshot struct {
	SessionID           string         `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Timestamp           time.Time      `json:"timestamp" yaml:"timestamp"`
	FrameTime           time.Duration  `json:"frame_time" yaml:"frame_time"`
	LastFrameTime       time.Duration  `json:"last_frame_time" yaml:"last_frame_time"`
	FrameBudget         time.Duration  `json:"frame_budget" yaml:"frame_budget"`
	FPS                 float64        `json:"fps" yaml:"fps"`
	Utilization         float64        `json:"utilization" yaml:"utilization"` // frame time over budget
	MemoryMB            float64        `json:"memory_mb" yaml:"memory_mb"`
	MemoryLimitMB       float64        `json:"memory_limit_mb" yaml:"memory_limit_mb"`
	MemoryLimitExceeded bool           `json:"memory_limit_exceeded" yaml:"memory_limit_exceeded"`
	NodeCount           int            `json:"node_count" yaml:"node_count"`
	TotalFrames         uint64         `json:"total_frames" yaml:"total_frames"`
	Load                LoadClass      `json:"load" yaml:"load"`
	ThrottleLevel       int            `json:"throttle_level" yaml:"throttle_level"`
	BaselineLevel       int            `json:"baseline_level" yaml:"baseline_level"`
	ActiveOptimizations []Optimization `json:"active_optimizations" yaml:"active_optimizations"`
	LastDecision        string         `json:"last_decision,omitempty" yaml:"last_decision,omitempty"`
}

// Err returns ErrResourceExhausted, wrapped with detail, when the memory
// limit is exceeded.
func (s Snapshot) Err() error {
	if !s.MemoryLimitExceeded {
		return nil
	}
	return fmt.Errorf("%w: heap %.1f MB exceeds %.1f MB", ErrResourceExhausted, s.MemoryMB, s.MemoryLimitMB)
}

// Option configures a Governor.
type Option func(*Governor)

// WithMemoryReader replaces the heap reader (MB).
func WithMemoryReader(fn func() float64) Option {
	return func(g *Governor) { g.readMemory = fn }
}

// WithClock replaces the snapshot clock.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// WithSessionID tags snapshots with an engine session id.
func WithSessionID(id string) Option {
	return func(g *Governor) { g.sessionID = id }
}

// Governor adapts the performance settings to observed load. It never
// writes configuration directly; every change goes through Manager.Tune.
type Governor struct {
	mu         sync.Mutex
	cfg        *config.Manager
	window     []time.Duration
	last       time.Duration
	frames     uint64
	nodeCount  int
	snap       Snapshot
	exceeded   bool
	readMemory func() float64
	now        func() time.Time
	sessionID  string
	exhausted  notify.Dispatcher[Snapshot]
}

var _ simulation.Observer = (*Governor)(nil)

// NewGovernor creates a governor tuning m.
func NewGovernor(m *config.Manager, opts ...Option) *Governor {
	g := &Governor{
		cfg:        m,
		readMemory: ReadHeapMB,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.snap = g.snapshotLocked(m.Get(), 0, LoadUnknown, "")
	return g
}

// ReadHeapMB returns the live heap size in megabytes.
func ReadHeapMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1 << 20)
}

// ObserveTick implements simulation.Observer.
func (g *Governor) ObserveTick(stats simulation.TickStats) {
	g.RecordFrame(stats.Duration, stats.NodeCount)
}

// RecordFrame adds one frame sample. When the evaluation window fills the
// governor evaluates it and may step one level; the returned snapshot is
// current either way.
func (g *Governor) RecordFrame(d time.Duration, nodeCount int) Snapshot {
	g.mu.Lock()
	g.window = append(g.window, d)
	g.last = d
	g.frames++
	g.nodeCount = nodeCount
	full := len(g.window) >= max(g.cfg.Get().Performance.EvaluationWindow, 1)
	snap := g.snap
	g.mu.Unlock()

	if full {
		return g.OptimizePerformance()
	}
	return snap
}

// OptimizePerformance evaluates the samples collected so far, steps the
// ladder at most one level and starts a new window.
func (g *Governor) OptimizePerformance() Snapshot {
	g.mu.Lock()
	cfg := g.cfg.Get()
	p := cfg.Performance
	avg := mean(g.window)
	g.window = g.window[:0]
	mem := g.readMemory()
	nodes := g.nodeCount

	budget := p.FrameBudget()
	load := LoadUnknown
	if avg > 0 {
		switch {
		case float64(avg) > float64(budget)*p.SlowFrameFactor:
			load = LoadOverloaded
		case float64(avg) < float64(budget)*p.FastFrameFactor:
			load = LoadUnderloaded
		default:
			load = LoadNominal
		}
	}
	exceeded := p.MemoryLimitMB > 0 && mem > p.MemoryLimitMB
	newlyExceeded := exceeded && !g.exceeded
	g.exceeded = exceeded

	floor := p.BaselineLevel
	if p.EmergencyThrottleThreshold > 0 && nodes > p.EmergencyThrottleThreshold {
		floor = max(floor, EmergencyLevel)
	}

	level, target, reason := p.ThrottleLevel, p.ThrottleLevel, ""
	switch {
	case exceeded && p.AutoThrottleOnMemory && level < MaxLevel:
		target, reason = level+1, "memory limit exceeded"
	case level < floor:
		target, reason = level+1, "node count over emergency threshold"
	case load == LoadOverloaded && level < MaxLevel:
		target, reason = level+1, "frames over budget"
	case load == LoadUnderloaded && level > floor && !exceeded:
		target, reason = level-1, "frames under budget"
	}
	g.mu.Unlock()

	if target != level {
		if g.cfg.Tune(func(pc *config.PerformanceConfig) { ApplyLevel(pc, target) }) {
			logging.Performance("throttle %d -> %d (%s, avg=%s nodes=%d)", level, target, reason, avg, nodes)
			cfg = g.cfg.Get()
		} else {
			reason = ""
		}
	}

	g.mu.Lock()
	g.snap = g.snapshotLocked(cfg, avg, load, reason)
	g.snap.MemoryMB = mem
	g.snap.MemoryLimitExceeded = exceeded
	snap := g.snap
	g.mu.Unlock()

	if newlyExceeded {
		logging.Get(logging.CategoryPerformance).Warn("%v", snap.Err())
		g.exhausted.Emit(snap)
	}
	return snap
}

// OptimizeForLargeDataset raises the throttle floor for a dataset of n
// nodes and returns it. The current level is raised to the floor when
// below it.
func (g *Governor) OptimizeForLargeDataset(n int) int {
	p := g.cfg.Get().Performance
	baseline := BaselineFor(n, p.EmergencyThrottleThreshold)
	g.cfg.Tune(func(pc *config.PerformanceConfig) {
		pc.BaselineLevel = baseline
		ApplyLevel(pc, max(pc.ThrottleLevel, baseline))
	})
	logging.PerformanceDebug("large dataset: nodes=%d baseline=%d", n, baseline)

	g.mu.Lock()
	g.nodeCount = n
	g.snap = g.snapshotLocked(g.cfg.Get(), g.snap.FrameTime, g.snap.Load, g.snap.LastDecision)
	g.mu.Unlock()
	return baseline
}

// Reset drops collected samples and returns the ladder to the baseline.
func (g *Governor) Reset() {
	g.mu.Lock()
	g.window = g.window[:0]
	g.exceeded = false
	g.mu.Unlock()
	g.cfg.Tune(func(pc *config.PerformanceConfig) { ApplyLevel(pc, pc.BaselineLevel) })

	g.mu.Lock()
	g.snap = g.snapshotLocked(g.cfg.Get(), 0, LoadUnknown, "")
	g.mu.Unlock()
}

// Snapshot returns the latest snapshot with fresh memory figures.
func (g *Governor) Snapshot() Snapshot {
	mem := g.readMemory()
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.snap
	s.MemoryMB = mem
	s.MemoryLimitExceeded = s.MemoryLimitMB > 0 && mem > s.MemoryLimitMB
	s.ActiveOptimizations = append([]Optimization(nil), s.ActiveOptimizations...)
	return s
}

// OnResourceExhausted registers fn to be called each time heap usage
// crosses the memory limit.
func (g *Governor) OnResourceExhausted(fn func(Snapshot)) (unsubscribe func()) {
	return g.exhausted.Subscribe(fn)
}

func (g *Governor) snapshotLocked(cfg config.ForceLayoutConfig, avg time.Duration, load LoadClass, decision string) Snapshot {
	p := cfg.Performance
	budget := p.FrameBudget()
	s := Snapshot{
		SessionID:           g.sessionID,
		Timestamp:           g.now(),
		FrameTime:           avg,
		LastFrameTime:       g.last,
		FrameBudget:         budget,
		MemoryLimitMB:       p.MemoryLimitMB,
		NodeCount:           g.nodeCount,
		TotalFrames:         g.frames,
		Load:                load,
		ThrottleLevel:       p.ThrottleLevel,
		BaselineLevel:       p.BaselineLevel,
		ActiveOptimizations: Optimizations(p.ThrottleLevel),
		LastDecision:        decision,
	}
	if avg > 0 {
		s.FPS = min(p.MaxFrameRate, float64(time.Second)/float64(avg))
		s.Utilization = float64(avg) / float64(budget)
	}
	return s
}

func mean(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}
