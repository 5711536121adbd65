// Package engine composes the layout components into one session: it
// feeds tasks to the simulation, routes governor tuning back into it, and
// keeps the focus lock and camera in step with the active task.
package engine

import (
	"errors"
	"math"
	"sync"

	"github.com/google/uuid"

	"taskmap/internal/config"
	"taskmap/internal/diagnostics"
	"taskmap/internal/frame"
	"taskmap/internal/logging"
	"taskmap/internal/notify"
	"taskmap/internal/perf"
	"taskmap/internal/simulation"
	"taskmap/internal/tracker"
	"taskmap/internal/types"
	"taskmap/internal/viewport"
)

// ReheatAlpha is the alpha floor applied when the task set or a physics
// setting changes.
const ReheatAlpha = 0.3

// ErrNoCamera is returned by camera operations on an engine built without
// WithCamera.
var ErrNoCamera = errors.New("engine: no camera attached")

// Option configures an Engine.
type Option func(*options)

type options struct {
	simSource    frame.Source
	cameraTarget viewport.Target
	cameraSource frame.Source
	surface      viewport.Surface
	managerOpts  []config.ManagerOption
	govOpts      []perf.Option
	sessionID    string
}

// WithFrameSource drives simulation ticks from src after Start.
func WithFrameSource(src frame.Source) Option {
	return func(o *options) { o.simSource = src }
}

// WithCamera attaches a camera writing to target, animated by src. A nil
// src leaves the host to call Camera().Step.
func WithCamera(target viewport.Target, src frame.Source) Option {
	return func(o *options) { o.cameraTarget, o.cameraSource = target, src }
}

// WithSurface supplies the rendering surface size.
func WithSurface(s viewport.Surface) Option {
	return func(o *options) { o.surface = s }
}

// WithRules injects a validation rule set.
func WithRules(rs config.RuleSet) Option {
	return func(o *options) { o.managerOpts = append(o.managerOpts, config.WithRules(rs)) }
}

// WithGovernorOptions passes options to the performance governor.
func WithGovernorOptions(opts ...perf.Option) Option {
	return func(o *options) { o.govOpts = append(o.govOpts, opts...) }
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// Engine is one layout session.
type Engine struct {
	id      string
	cfg     *config.Manager
	sim     *simulation.Simulation
	gov     *perf.Governor
	tracker *tracker.Tracker
	camera  *viewport.Camera
	surface viewport.Surface

	mu       sync.Mutex
	tasks    []types.Task
	lockedID string
	closed   bool

	diag   notify.Dispatcher[error]
	unsubs []func()
}

// New builds an engine around cfg. The simulation starts idle.
func New(cfg config.ForceLayoutConfig, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m, err := config.NewManager(cfg, o.managerOpts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		id:      o.sessionID,
		cfg:     m,
		tracker: tracker.New(),
		surface: o.surface,
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	e.gov = perf.NewGovernor(m, append([]perf.Option{perf.WithSessionID(e.id)}, o.govOpts...)...)

	simOpts := []simulation.Option{
		simulation.WithObserver(e.gov),
		simulation.WithDiagnostics(e.reportDiagnostic),
	}
	if o.simSource != nil {
		simOpts = append(simOpts, simulation.WithFrameSource(o.simSource))
	}
	e.sim = simulation.New(cfg, simOpts...)

	if o.cameraTarget != nil {
		camOpts := []viewport.CameraOption{viewport.WithZoomRange(cfg.Viewport.MinZoom, cfg.Viewport.MaxZoom)}
		if o.cameraSource != nil {
			camOpts = append(camOpts, viewport.WithFrameSource(o.cameraSource))
		}
		e.camera = viewport.NewCamera(o.cameraTarget, camOpts...)
	}

	e.unsubs = append(e.unsubs,
		m.Subscribe(e.onConfigChange),
		e.tracker.Subscribe(e.onActiveChange),
		e.gov.OnResourceExhausted(func(s perf.Snapshot) { e.reportDiagnostic(s.Err()) }),
	)
	logging.Engine("session %s created", e.id)
	return e, nil
}

// SessionID identifies this engine in logs and performance snapshots.
func (e *Engine) SessionID() string { return e.id }

// Simulation exposes the underlying simulation.
func (e *Engine) Simulation() *simulation.Simulation { return e.sim }

// Governor exposes the performance governor.
func (e *Engine) Governor() *perf.Governor { return e.gov }

// Camera returns the attached camera, or nil.
func (e *Engine) Camera() *viewport.Camera { return e.camera }

// SetTasks syncs the layout with tasks. Surviving nodes keep their state;
// a change in the set of ids reheats the layout. initial optionally seeds
// positions for new tasks.
func (e *Engine) SetTasks(tasks []types.Task, initial map[string]types.Point) error {
	nodes := types.NodesFromTasks(tasks)
	links, dangling := types.LinksFromTasks(tasks)

	e.mu.Lock()
	changed := !sameIDs(e.tasks, tasks)
	e.tasks = append([]types.Task(nil), tasks...)
	e.mu.Unlock()

	var errs []error
	for _, dep := range dangling {
		err := &simulation.UnknownNodeError{Op: "dependency", ID: dep}
		e.reportDiagnostic(err)
		errs = append(errs, err)
	}
	if err := e.sim.SetData(nodes, links, initial); err != nil {
		errs = append(errs, err)
	}

	if changed {
		e.gov.OptimizeForLargeDataset(len(nodes))
		e.reheat()
	}
	e.tracker.UpdateActiveTask(tasks)
	logging.EngineDebug("set tasks: %d tasks, %d links, changed=%v", len(tasks), len(links), changed)
	return errors.Join(errs...)
}

// Tasks returns the last task list passed to SetTasks.
func (e *Engine) Tasks() []types.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Task(nil), e.tasks...)
}

func sameIDs(a, b []types.Task) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, t := range a {
		seen[t.ID] = true
	}
	for _, t := range b {
		if !seen[t.ID] {
			return false
		}
	}
	return true
}

// reheat raises alpha to at least ReheatAlpha. A cooled simulation
// resumes; idle and stopped ones stay put until the host starts them.
func (e *Engine) reheat() {
	e.sim.SetAlpha(math.Max(e.sim.Alpha(), ReheatAlpha))
}

// Start begins the layout.
func (e *Engine) Start() { e.sim.Start() }

// Stop halts the layout.
func (e *Engine) Stop() { e.sim.Stop() }

// Wait blocks until the frame loop halted by Stop or Close has exited.
// It must not be called from a tick or end callback.
func (e *Engine) Wait() { e.sim.Wait() }

// Restart reheats the layout fully, overriding a governor freeze.
func (e *Engine) Restart() { e.sim.Restart() }

// Tick advances the layout by one step when the host drives frames.
func (e *Engine) Tick() bool { return e.sim.Tick() }

// Nodes returns a snapshot of every node.
func (e *Engine) Nodes() []types.PhysicsNode { return e.sim.Nodes() }

// Links returns the links with their effective parameters.
func (e *Engine) Links() []types.PhysicsLink { return e.sim.Links() }

// OnTick subscribes to per-tick snapshots.
func (e *Engine) OnTick(fn func([]types.PhysicsNode)) func() { return e.sim.OnTick(fn) }

// OnEnd subscribes to cooling events.
func (e *Engine) OnEnd(fn func([]types.PhysicsNode)) func() { return e.sim.OnEnd(fn) }

// OnActiveTaskChange subscribes to active-task changes. Engine bookkeeping
// (focus lock, spacing) has already run when fn is called.
func (e *Engine) OnActiveTaskChange(fn func(active, previous *types.Task)) func() {
	return e.tracker.Subscribe(fn)
}

// OnDiagnostic subscribes to non-fatal errors: unknown ids, dangling
// dependencies, numeric resets and resource exhaustion.
func (e *Engine) OnDiagnostic(fn func(error)) func() { return e.diag.Subscribe(fn) }

// ActiveTask returns the active task, or nil.
func (e *Engine) ActiveTask() *types.Task { return e.tracker.Active() }

// PinNode fixes a node in place.
func (e *Engine) PinNode(id string, x, y float64) error { return e.sim.SetFixedPosition(id, x, y) }

// ReleasePins unpins every node, including a focus lock.
func (e *Engine) ReleasePins() {
	e.mu.Lock()
	e.lockedID = ""
	e.mu.Unlock()
	e.sim.ReleaseFixedPositions()
}

// Close stops the simulation and camera and drops internal
// subscriptions. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unsubs := e.unsubs
	e.unsubs = nil
	e.mu.Unlock()

	e.sim.Stop()
	if e.camera != nil {
		e.camera.CancelTransition()
	}
	for _, u := range unsubs {
		u()
	}
	logging.EngineDebug("session %s closed", e.id)
}

func (e *Engine) reportDiagnostic(err error) {
	if err == nil {
		return
	}
	e.diag.Emit(err)
}

// onActiveChange moves the focus: the previous lock is released before the
// new node is marked active and, when configured, pinned to the center.
func (e *Engine) onActiveChange(active, previous *types.Task) {
	cfg := e.cfg.Get()

	e.mu.Lock()
	locked := e.lockedID
	e.lockedID = ""
	e.mu.Unlock()
	if locked != "" {
		_ = e.sim.ReleaseFixedPosition(locked)
	}

	activeID := ""
	if active != nil {
		activeID = active.ID
	}
	if err := e.sim.SetActive(activeID); err != nil {
		return
	}
	if active != nil && cfg.Focus.Enabled && cfg.Focus.LockActiveToCenter {
		if err := e.sim.SetFixedPosition(active.ID, cfg.Dimensions.Width/2, cfg.Dimensions.Height/2); err == nil {
			e.mu.Lock()
			e.lockedID = active.ID
			e.mu.Unlock()
		}
	}
	if active != nil && e.camera != nil {
		if err := e.FocusActive(true); err != nil {
			logging.ViewportDebug("focus on %s skipped: %v", active.ID, err)
		}
	}
}

func (e *Engine) onConfigChange(c config.ConfigChange) {
	e.sim.SetConfig(c.Current)
	if e.camera != nil {
		e.camera.SetZoomRange(c.Current.Viewport.MinZoom, c.Current.Viewport.MaxZoom)
	}
	if c.Source == config.SourceHost {
		if c.Previous.Focus.Enabled != c.Current.Focus.Enabled ||
			c.Previous.Focus.LockActiveToCenter != c.Current.Focus.LockActiveToCenter {
			e.relock()
		}
		if config.RequiresReheat(c.Changes) {
			e.reheat()
		}
	}
}

// relock reapplies focus-lock bookkeeping after the lock setting changed.
func (e *Engine) relock() {
	active := e.tracker.Active()
	e.onActiveChange(active, active)
}

// Diagnostics helpers.

// TestCollisionDetection checks the current layout for separation
// violations.
func (e *Engine) TestCollisionDetection() diagnostics.CollisionTest {
	return diagnostics.TestCollisionDetection(e.sim.Nodes(), e.cfg.Get())
}

// GenerateCollisionReport grades the current layout.
func (e *Engine) GenerateCollisionReport() diagnostics.CollisionReport {
	return diagnostics.GenerateCollisionReport(e.sim.Nodes(), e.cfg.Get(), e.gov.Snapshot())
}

// GetPerformanceMetrics returns the governor snapshot.
func (e *Engine) GetPerformanceMetrics() perf.Snapshot { return e.gov.Snapshot() }

// OptimizePerformance evaluates the samples collected so far.
func (e *Engine) OptimizePerformance() perf.Snapshot { return e.gov.OptimizePerformance() }

// OptimizeForLargeDataset raises the throttle floor for n nodes.
func (e *Engine) OptimizeForLargeDataset(n int) int { return e.gov.OptimizeForLargeDataset(n) }
