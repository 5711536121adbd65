package config

import (
	"fmt"
	"math"
	"time"
)

// Rule checks one constraint of a configuration and returns every finding.
type Rule struct {
	Field string
	Check func(c *ForceLayoutConfig) []FieldError
}

// RuleSet is a versioned, injectable collection of rules.
type RuleSet struct {
	Version string
	Rules   []Rule
}

// With returns a copy of the rule set extended with extra rules under a new
// version label.
func (rs RuleSet) With(version string, extra ...Rule) RuleSet {
	rules := make([]Rule, 0, len(rs.Rules)+len(extra))
	rules = append(rules, rs.Rules...)
	rules = append(rules, extra...)
	return RuleSet{Version: version, Rules: rules}
}

// Without returns a copy of the rule set minus the rules for the named fields.
func (rs RuleSet) Without(version string, fields ...string) RuleSet {
	drop := make(map[string]bool, len(fields))
	for _, f := range fields {
		drop[f] = true
	}
	out := RuleSet{Version: version}
	for _, r := range rs.Rules {
		if !drop[r.Field] {
			out.Rules = append(out.Rules, r)
		}
	}
	return out
}

// Bound is one end of a numeric range.
type Bound struct {
	v    float64
	open bool
}

// Closed is an inclusive bound.
func Closed(v float64) *Bound { return &Bound{v: v} }

// Open is an exclusive bound.
func Open(v float64) *Bound { return &Bound{v: v, open: true} }

// RangeRule rejects values outside [lo, hi]; nil bounds are unbounded and
// open bounds exclude the endpoint.
func RangeRule(field string, get func(*ForceLayoutConfig) float64, lo, hi *Bound) Rule {
	return Rule{Field: field, Check: func(c *ForceLayoutConfig) []FieldError {
		v := get(c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return []FieldError{{Field: field, Message: "must be a finite number", Value: v}}
		}
		if lo != nil && (v < lo.v || (lo.open && v == lo.v)) {
			return []FieldError{{Field: field, Message: fmt.Sprintf("must be %s %g", cmpWord(lo.open, ">"), lo.v), Value: v}}
		}
		if hi != nil && (v > hi.v || (hi.open && v == hi.v)) {
			return []FieldError{{Field: field, Message: fmt.Sprintf("must be %s %g", cmpWord(hi.open, "<"), hi.v), Value: v}}
		}
		return nil
	}}
}

func cmpWord(open bool, op string) string {
	if open {
		return op
	}
	return op + "="
}

// OneOfRule rejects string values not in allowed.
func OneOfRule(field string, get func(*ForceLayoutConfig) string, allowed ...string) Rule {
	return Rule{Field: field, Check: func(c *ForceLayoutConfig) []FieldError {
		v := get(c)
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return []FieldError{{Field: field, Message: fmt.Sprintf("must be one of %v", allowed), Value: v}}
	}}
}

// WarnRule reports a non-blocking finding when cond holds.
func WarnRule(field string, cond func(*ForceLayoutConfig) bool, msg func(*ForceLayoutConfig) string) Rule {
	return Rule{Field: field, Check: func(c *ForceLayoutConfig) []FieldError {
		if !cond(c) {
			return nil
		}
		return []FieldError{{Field: field, Message: msg(c), Severity: SeverityWarning}}
	}}
}

// ValidEasings lists the easing curve names accepted by the camera.
var ValidEasings = []string{"linear", "ease-in", "ease-out", "ease-in-out"}

// DefaultRules returns the built-in rule set.
func DefaultRules() RuleSet {
	i := func(get func(*ForceLayoutConfig) int) func(*ForceLayoutConfig) float64 {
		return func(c *ForceLayoutConfig) float64 { return float64(get(c)) }
	}

	return RuleSet{Version: "v1", Rules: []Rule{
		// simulation
		RangeRule("simulation.alpha_min", func(c *ForceLayoutConfig) float64 { return c.Simulation.AlphaMin }, Open(0), Open(1)),
		RangeRule("simulation.alpha_decay", func(c *ForceLayoutConfig) float64 { return c.Simulation.AlphaDecay }, Closed(0), Closed(1)),
		RangeRule("simulation.alpha_target", func(c *ForceLayoutConfig) float64 { return c.Simulation.AlphaTarget }, Closed(0), Open(1)),
		RangeRule("simulation.velocity_decay", func(c *ForceLayoutConfig) float64 { return c.Simulation.VelocityDecay }, Closed(0), Closed(1)),
		WarnRule("simulation.alpha_target",
			func(c *ForceLayoutConfig) bool { return c.Simulation.AlphaTarget > c.Simulation.AlphaMin },
			func(c *ForceLayoutConfig) string {
				return fmt.Sprintf("alpha_target %g exceeds alpha_min %g; the simulation will never cool", c.Simulation.AlphaTarget, c.Simulation.AlphaMin)
			}),
		WarnRule("simulation.alpha_decay",
			func(c *ForceLayoutConfig) bool { return c.Simulation.AlphaDecay == 0 },
			func(*ForceLayoutConfig) string { return "alpha_decay 0 disables cooling" }),

		// forces
		RangeRule("forces.charge_strength", func(c *ForceLayoutConfig) float64 { return c.Forces.ChargeStrength }, nil, Closed(0)),
		RangeRule("forces.theta", func(c *ForceLayoutConfig) float64 { return c.Forces.Theta }, Open(0), Closed(2)),
		RangeRule("forces.link_strength", func(c *ForceLayoutConfig) float64 { return c.Forces.LinkStrength }, Closed(0), Closed(1)),
		RangeRule("forces.link_distance", func(c *ForceLayoutConfig) float64 { return c.Forces.LinkDistance }, Open(0), nil),
		RangeRule("forces.center_strength", func(c *ForceLayoutConfig) float64 { return c.Forces.CenterStrength }, Closed(0), Closed(1)),
		RangeRule("forces.collision_radius", func(c *ForceLayoutConfig) float64 { return c.Forces.CollisionRadius }, Open(0), nil),
		RangeRule("forces.collision_strength", func(c *ForceLayoutConfig) float64 { return c.Forces.CollisionStrength }, Closed(0), Closed(1)),
		RangeRule("forces.collision_iterations", i(func(c *ForceLayoutConfig) int { return c.Forces.CollisionIterations }), Closed(1), Closed(10)),

		// dimensions
		RangeRule("dimensions.width", func(c *ForceLayoutConfig) float64 { return c.Dimensions.Width }, Open(0), nil),
		RangeRule("dimensions.height", func(c *ForceLayoutConfig) float64 { return c.Dimensions.Height }, Open(0), nil),

		// focus
		RangeRule("focus.focus_strength", func(c *ForceLayoutConfig) float64 { return c.Focus.FocusStrength }, Closed(1), Closed(10)),
		RangeRule("focus.active_spacing_multiplier", func(c *ForceLayoutConfig) float64 { return c.Focus.ActiveSpacingMultiplier }, Closed(1), Closed(5)),

		// smart spacing
		RangeRule("smart_spacing.min_node_separation", func(c *ForceLayoutConfig) float64 { return c.SmartSpacing.MinNodeSeparation }, Open(0), nil),
		RangeRule("smart_spacing.priority_spacing_multiplier", func(c *ForceLayoutConfig) float64 { return c.SmartSpacing.PrioritySpacingMultiplier }, Closed(1), Closed(5)),
		RangeRule("smart_spacing.density_factor", func(c *ForceLayoutConfig) float64 { return c.SmartSpacing.DensityFactor }, Closed(0), Closed(1)),
		RangeRule("smart_spacing.max_density_multiplier", func(c *ForceLayoutConfig) float64 { return c.SmartSpacing.MaxDensityMultiplier }, Closed(1), Closed(5)),
		RangeRule("smart_spacing.cluster_spacing", func(c *ForceLayoutConfig) float64 { return c.SmartSpacing.ClusterSpacing }, Closed(0), nil),
		OneOfRule("smart_spacing.cluster_by", func(c *ForceLayoutConfig) string { return c.SmartSpacing.ClusterBy }, ClusterAuto, ClusterComponents, ClusterTags),
		WarnRule("smart_spacing.min_node_separation",
			func(c *ForceLayoutConfig) bool {
				return c.SmartSpacing.MinNodeSeparation < c.Forces.CollisionRadius*1.1
			},
			func(c *ForceLayoutConfig) string {
				return fmt.Sprintf("min_node_separation %g is below collision_radius x 1.1 (%g); nodes may visually touch",
					c.SmartSpacing.MinNodeSeparation, c.Forces.CollisionRadius*1.1)
			}),

		// performance
		RangeRule("performance.max_frame_rate", func(c *ForceLayoutConfig) float64 { return c.Performance.MaxFrameRate }, Open(0), Closed(240)),
		RangeRule("performance.emergency_throttle_threshold", i(func(c *ForceLayoutConfig) int { return c.Performance.EmergencyThrottleThreshold }), Closed(1), nil),
		RangeRule("performance.memory_limit_mb", func(c *ForceLayoutConfig) float64 { return c.Performance.MemoryLimitMB }, Closed(0), nil),
		RangeRule("performance.evaluation_window", i(func(c *ForceLayoutConfig) int { return c.Performance.EvaluationWindow }), Closed(1), Closed(600)),
		RangeRule("performance.slow_frame_factor", func(c *ForceLayoutConfig) float64 { return c.Performance.SlowFrameFactor }, Open(1), nil),
		RangeRule("performance.fast_frame_factor", func(c *ForceLayoutConfig) float64 { return c.Performance.FastFrameFactor }, Open(0), Open(1)),
		RangeRule("performance.parallel_threshold", i(func(c *ForceLayoutConfig) int { return c.Performance.ParallelThreshold }), Closed(0), nil),
		RangeRule("performance.workers", i(func(c *ForceLayoutConfig) int { return c.Performance.Workers }), Closed(0), Closed(256)),
		RangeRule("performance.throttle_level", i(func(c *ForceLayoutConfig) int { return c.Performance.ThrottleLevel }), Closed(0), Closed(5)),
		RangeRule("performance.baseline_level", i(func(c *ForceLayoutConfig) int { return c.Performance.BaselineLevel }), Closed(0), Closed(5)),
		RangeRule("performance.collision_sample_rate", func(c *ForceLayoutConfig) float64 { return c.Performance.CollisionSampleRate }, Open(0), Closed(1)),
		RangeRule("performance.index_capacity", i(func(c *ForceLayoutConfig) int { return c.Performance.IndexCapacity }), Closed(1), Closed(1024)),
		RangeRule("performance.theta_boost", func(c *ForceLayoutConfig) float64 { return c.Performance.ThetaBoost }, Closed(0), Closed(2)),
		RangeRule("performance.tick_rate_cap", func(c *ForceLayoutConfig) float64 { return c.Performance.TickRateCap }, Closed(0), nil),
		RangeRule("performance.spacing_interval", i(func(c *ForceLayoutConfig) int { return c.Performance.SpacingInterval }), Closed(1), Closed(1000)),
		{Field: "performance.tick_rate_cap", Check: func(c *ForceLayoutConfig) []FieldError {
			if c.Performance.TickRateCap > c.Performance.MaxFrameRate {
				return []FieldError{{Field: "performance.tick_rate_cap", Message: "must not exceed max_frame_rate", Value: c.Performance.TickRateCap}}
			}
			return nil
		}},

		// viewport
		RangeRule("viewport.min_zoom", func(c *ForceLayoutConfig) float64 { return c.Viewport.MinZoom }, Open(0), nil),
		RangeRule("viewport.padding", func(c *ForceLayoutConfig) float64 { return c.Viewport.Padding }, Closed(0), nil),
		RangeRule("viewport.node_size", func(c *ForceLayoutConfig) float64 { return c.Viewport.NodeSize }, Closed(0), nil),
		{Field: "viewport.max_zoom", Check: func(c *ForceLayoutConfig) []FieldError {
			if c.Viewport.MaxZoom < c.Viewport.MinZoom {
				return []FieldError{{Field: "viewport.max_zoom", Message: "must be >= min_zoom", Value: c.Viewport.MaxZoom}}
			}
			return nil
		}},
		{Field: "viewport.transition_duration", Check: func(c *ForceLayoutConfig) []FieldError {
			d, err := time.ParseDuration(c.Viewport.TransitionDuration)
			if err != nil {
				return []FieldError{{Field: "viewport.transition_duration", Message: "must be a duration such as 750ms", Value: c.Viewport.TransitionDuration}}
			}
			if d < 0 {
				return []FieldError{{Field: "viewport.transition_duration", Message: "must not be negative", Value: c.Viewport.TransitionDuration}}
			}
			return nil
		}},
		OneOfRule("viewport.easing", func(c *ForceLayoutConfig) string { return c.Viewport.Easing }, ValidEasings...),
	}}
}
