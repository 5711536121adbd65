package engine

import (
	"taskmap/internal/config"
	"taskmap/internal/logging"
	"taskmap/internal/viewport"
)

// UpdateConfig merges a partial configuration. A rejected patch changes
// nothing.
func (e *Engine) UpdateConfig(p config.Patch) (config.ValidationResult, error) {
	return e.cfg.Merge(p)
}

// UpdateConfigYAML merges a partial YAML document.
func (e *Engine) UpdateConfigYAML(doc []byte) (config.ValidationResult, error) {
	return e.cfg.MergeYAML(doc)
}

// ValidateConfig checks p against the live configuration without applying
// it.
func (e *Engine) ValidateConfig(p config.Patch) config.ValidationResult {
	return e.cfg.Validate(p)
}

// GetConfig returns the live configuration.
func (e *Engine) GetConfig() config.ForceLayoutConfig { return e.cfg.Get() }

// ExportConfig serializes the live configuration.
func (e *Engine) ExportConfig() ([]byte, error) { return config.ToSerializable(e.cfg.Get()) }

// ImportConfig replaces the live configuration with a serialized one.
func (e *Engine) ImportConfig(data []byte) (config.ValidationResult, error) {
	cfg, err := config.FromSerializable(data)
	if err != nil {
		return config.ValidationResult{}, err
	}
	return e.cfg.Replace(cfg)
}

// OnConfigChange subscribes to applied configuration changes, including
// governor tuning.
func (e *Engine) OnConfigChange(fn func(config.ConfigChange)) func() {
	return e.cfg.Subscribe(fn)
}

func (e *Engine) viewportOptions() viewport.Options {
	return viewport.OptionsFrom(e.cfg.Get(), e.surface)
}

func (e *Engine) currentViewport() viewport.Viewport {
	if e.camera != nil {
		return e.camera.Target().Viewport()
	}
	return viewport.Viewport{Zoom: 1}
}

// CalculateOptimalViewport frames the active task, and its dependency
// neighbors when viewport.include_related_tasks is set.
func (e *Engine) CalculateOptimalViewport() (*viewport.Viewport, error) {
	return viewport.CalculateOptimalViewport(e.sim.Nodes(), e.sim.Links(), e.sim.ActiveID(), e.currentViewport(), e.viewportOptions())
}

// FocusActive moves the camera onto the active task. With animate false
// the camera jumps.
func (e *Engine) FocusActive(animate bool) error {
	if e.camera == nil {
		return ErrNoCamera
	}
	v, err := e.CalculateOptimalViewport()
	if err != nil {
		return err
	}
	logging.Viewport("focus active task at (%.1f, %.1f) zoom %.3f animate=%v", v.X, v.Y, v.Zoom, animate)
	e.moveCamera(*v, animate)
	return nil
}

// FitAll frames every node.
func (e *Engine) FitAll(animate bool) error {
	return e.FitTasks(nil, animate)
}

// FitTasks frames the named tasks.
func (e *Engine) FitTasks(ids []string, animate bool) error {
	if e.camera == nil {
		return ErrNoCamera
	}
	v, err := viewport.CalculateFitViewport(ids, e.sim.Nodes(), e.viewportOptions())
	if err != nil {
		return err
	}
	e.moveCamera(*v, animate)
	return nil
}

func (e *Engine) moveCamera(v viewport.Viewport, animate bool) {
	vc := e.cfg.Get().Viewport
	d := vc.GetTransitionDuration()
	if !animate {
		d = 0
	}
	easing, err := viewport.ParseEasing(vc.Easing)
	if err != nil {
		logging.ViewportDebug("easing %q: %v", vc.Easing, err)
		easing = viewport.EaseInOut
	}
	e.camera.TransitionToViewport(v, d, easing)
}
