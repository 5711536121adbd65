// Package config holds the force-layout parameter set: its defaults,
// validation rules, partial merges, serialization and the file layer used
// by the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ForceLayoutConfig holds every tunable of the layout engine. A value is
// treated as immutable for the duration of one tick.
type ForceLayoutConfig struct {
	Simulation   SimulationConfig   `yaml:"simulation" json:"simulation"`
	Forces       ForcesConfig       `yaml:"forces" json:"forces"`
	Dimensions   DimensionsConfig   `yaml:"dimensions" json:"dimensions"`
	Focus        FocusConfig        `yaml:"focus" json:"focus"`
	SmartSpacing SmartSpacingConfig `yaml:"smart_spacing" json:"smart_spacing"`
	Performance  PerformanceConfig  `yaml:"performance" json:"performance"`
	Viewport     ViewportConfig     `yaml:"viewport" json:"viewport"`
}

// SimulationConfig configures the integrator and cooling schedule.
type SimulationConfig struct {
	AlphaMin      float64 `yaml:"alpha_min" json:"alpha_min"`
	AlphaDecay    float64 `yaml:"alpha_decay" json:"alpha_decay"`
	AlphaTarget   float64 `yaml:"alpha_target" json:"alpha_target"`
	VelocityDecay float64 `yaml:"velocity_decay" json:"velocity_decay"`
}

// ForcesConfig configures the force model.
type ForcesConfig struct {
	ChargeStrength      float64 `yaml:"charge_strength" json:"charge_strength"` // negative = repulsive
	Theta               float64 `yaml:"theta" json:"theta"`                     // Barnes-Hut opening angle
	LinkStrength        float64 `yaml:"link_strength" json:"link_strength"`
	LinkDistance        float64 `yaml:"link_distance" json:"link_distance"`
	CenterStrength      float64 `yaml:"center_strength" json:"center_strength"`
	CollisionRadius     float64 `yaml:"collision_radius" json:"collision_radius"`
	CollisionStrength   float64 `yaml:"collision_strength" json:"collision_strength"`
	CollisionIterations int     `yaml:"collision_iterations" json:"collision_iterations"`
}

// DimensionsConfig is the layout area. It doubles as the fallback surface
// size when no rendering surface reports its own.
type DimensionsConfig struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// FocusConfig configures the active-task bias.
type FocusConfig struct {
	Enabled                 bool    `yaml:"enabled" json:"enabled"`
	FocusStrength           float64 `yaml:"focus_strength" json:"focus_strength"`
	ActiveSpacingMultiplier float64 `yaml:"active_spacing_multiplier" json:"active_spacing_multiplier"`
	LockActiveToCenter      bool    `yaml:"lock_active_to_center" json:"lock_active_to_center"`
}

// Cluster detection modes.
const (
	ClusterAuto       = "auto"       // tags when present, components otherwise
	ClusterComponents = "components" // connected components of the dependency graph
	ClusterTags       = "tags"       // explicit task cluster tags only
)

// SmartSpacingConfig configures per-node spacing.
type SmartSpacingConfig struct {
	Enabled                   bool    `yaml:"enabled" json:"enabled"`
	MinNodeSeparation         float64 `yaml:"min_node_separation" json:"min_node_separation"`
	PrioritySpacingMultiplier float64 `yaml:"priority_spacing_multiplier" json:"priority_spacing_multiplier"`
	DensityAdaptation         bool    `yaml:"density_adaptation" json:"density_adaptation"`
	DensityFactor             float64 `yaml:"density_factor" json:"density_factor"`
	MaxDensityMultiplier      float64 `yaml:"max_density_multiplier" json:"max_density_multiplier"`
	ClusterSpacing            float64 `yaml:"cluster_spacing" json:"cluster_spacing"`
	ClusterBy                 string  `yaml:"cluster_by" json:"cluster_by"`
}

// PerformanceConfig configures the performance governor. The fields below
// the marker are written by the governor at runtime; every such write is
// announced through Manager.Subscribe with SourceGovernor.
type PerformanceConfig struct {
	MaxFrameRate               float64 `yaml:"max_frame_rate" json:"max_frame_rate"`
	EmergencyThrottleThreshold int     `yaml:"emergency_throttle_threshold" json:"emergency_throttle_threshold"`
	MemoryLimitMB              float64 `yaml:"memory_limit_mb" json:"memory_limit_mb"` // 0 = unlimited
	EvaluationWindow           int     `yaml:"evaluation_window" json:"evaluation_window"`
	SlowFrameFactor            float64 `yaml:"slow_frame_factor" json:"slow_frame_factor"`
	FastFrameFactor            float64 `yaml:"fast_frame_factor" json:"fast_frame_factor"`
	ParallelThreshold          int     `yaml:"parallel_threshold" json:"parallel_threshold"`
	Workers                    int     `yaml:"workers" json:"workers"` // 0 = GOMAXPROCS
	AutoThrottleOnMemory       bool    `yaml:"auto_throttle_on_memory" json:"auto_throttle_on_memory"`

	// governor-owned
	ThrottleLevel       int     `yaml:"throttle_level" json:"throttle_level"`
	BaselineLevel       int     `yaml:"baseline_level" json:"baseline_level"`
	CollisionSampleRate float64 `yaml:"collision_sample_rate" json:"collision_sample_rate"`
	IndexCapacity       int     `yaml:"index_capacity" json:"index_capacity"`
	ThetaBoost          float64 `yaml:"theta_boost" json:"theta_boost"`
	TickRateCap         float64 `yaml:"tick_rate_cap" json:"tick_rate_cap"` // 0 = uncapped
	SpacingInterval     int     `yaml:"spacing_interval" json:"spacing_interval"`
	Frozen              bool    `yaml:"frozen" json:"frozen"`
}

// FrameBudget is the target duration of one frame.
func (p PerformanceConfig) FrameBudget() time.Duration {
	if p.MaxFrameRate <= 0 {
		return time.Second / 60
	}
	return time.Duration(float64(time.Second) / p.MaxFrameRate)
}

// ViewportConfig configures viewport framing and camera transitions.
type ViewportConfig struct {
	MinZoom             float64 `yaml:"min_zoom" json:"min_zoom"`
	MaxZoom             float64 `yaml:"max_zoom" json:"max_zoom"`
	Padding             float64 `yaml:"padding" json:"padding"`
	NodeSize            float64 `yaml:"node_size" json:"node_size"`
	IncludeRelatedTasks bool    `yaml:"include_related_tasks" json:"include_related_tasks"`
	TransitionDuration  string  `yaml:"transition_duration" json:"transition_duration"`
	Easing              string  `yaml:"easing" json:"easing"`
}

// GetTransitionDuration returns the transition duration as a duration.
func (v ViewportConfig) GetTransitionDuration() time.Duration {
	d, err := time.ParseDuration(v.TransitionDuration)
	if err != nil {
		return 750 * time.Millisecond
	}
	return d
}

// DefaultConfig returns the default configuration.
func DefaultConfig() ForceLayoutConfig {
	return ForceLayoutConfig{
		Simulation: SimulationConfig{
			AlphaMin:      0.001,
			AlphaDecay:    0.0228, // reaches alpha_min in ~300 ticks
			AlphaTarget:   0,
			VelocityDecay: 0.4,
		},
		Forces: ForcesConfig{
			ChargeStrength:      -300,
			Theta:               0.9,
			LinkStrength:        0.4,
			LinkDistance:        100,
			CenterStrength:      0.05,
			CollisionRadius:     30,
			CollisionStrength:   0.8,
			CollisionIterations: 2,
		},
		Dimensions: DimensionsConfig{
			Width:  1200,
			Height: 800,
		},
		Focus: FocusConfig{
			Enabled:                 true,
			FocusStrength:           2,
			ActiveSpacingMultiplier: 1.3,
		},
		SmartSpacing: SmartSpacingConfig{
			Enabled:                   true,
			MinNodeSeparation:         60,
			PrioritySpacingMultiplier: 1.5,
			DensityAdaptation:         true,
			DensityFactor:             0.1,
			MaxDensityMultiplier:      2,
			ClusterSpacing:            50,
			ClusterBy:                 ClusterAuto,
		},
		Performance: PerformanceConfig{
			MaxFrameRate:               60,
			EmergencyThrottleThreshold: 1000,
			MemoryLimitMB:              512,
			EvaluationWindow:           5,
			SlowFrameFactor:            1.5,
			FastFrameFactor:            0.5,
			ParallelThreshold:          500,
			AutoThrottleOnMemory:       true,
			CollisionSampleRate:        1,
			IndexCapacity:              8,
			SpacingInterval:            1,
		},
		Viewport: ViewportConfig{
			MinZoom:             0.1,
			MaxZoom:             2.5,
			Padding:             40,
			NodeSize:            40,
			IncludeRelatedTasks: true,
			TransitionDuration:  "750ms",
			Easing:              "ease-out",
		},
	}
}

// ToSerializable encodes the configuration as a YAML document.
func ToSerializable(cfg ForceLayoutConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// FromSerializable decodes a YAML (or JSON, which is valid YAML) document
// on top of the defaults and validates the result against DefaultRules.
func FromSerializable(data []byte) (ForceLayoutConfig, error) {
	cfg := DefaultConfig()
	if err := decodeStrict(data, &cfg); err != nil {
		return DefaultConfig(), &ConfigurationError{Errors: []FieldError{{Field: "", Message: err.Error(), Severity: SeverityError}}}
	}
	if res := NewValidator(DefaultRules()).Validate(cfg); !res.Valid {
		return DefaultConfig(), &ConfigurationError{Errors: res.Errors, Warnings: res.Warnings}
	}
	return cfg, nil
}

// ToJSON encodes the configuration as indented JSON.
func ToJSON(cfg ForceLayoutConfig) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides are applied last.
func Load(path string) (ForceLayoutConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	loaded, err := FromSerializable(data)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	loaded.applyEnvOverrides()
	return loaded, nil
}

// Save saves configuration to a YAML file.
func Save(path string, cfg ForceLayoutConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := ToSerializable(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *ForceLayoutConfig) applyEnvOverrides() {
	if v, ok := envFloat("TASKMAP_WIDTH"); ok {
		c.Dimensions.Width = v
	}
	if v, ok := envFloat("TASKMAP_HEIGHT"); ok {
		c.Dimensions.Height = v
	}
	if v, ok := envFloat("TASKMAP_MAX_FRAME_RATE"); ok {
		c.Performance.MaxFrameRate = v
	}
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// LogLevelFromEnv returns TASKMAP_LOG_LEVEL, or fallback when unset.
func LogLevelFromEnv(fallback string) string {
	if v := os.Getenv("TASKMAP_LOG_LEVEL"); v != "" {
		return v
	}
	return fallback
}
