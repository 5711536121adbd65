package perf

import "taskmap/internal/config"

// Optimization names one rung of the throttle ladder.
type Optimization string

const (
	OptReducedCollisionSampling Optimization = "reduced-collision-sampling"
	OptCoarseSpatialIndex       Optimization = "coarse-spatial-index"
	OptTickRateCap              Optimization = "tick-rate-cap"
	OptSparseSpacing            Optimization = "sparse-spacing-recompute"
	OptFrozen                   Optimization = "frozen"
)

const (
	// MaxLevel is the top of the ladder: the simulation is frozen.
	MaxLevel = 5
	// EmergencyLevel is the floor enforced while the node count exceeds
	// the emergency threshold.
	EmergencyLevel = 2
	// MaxBaselineLevel caps the floor derived from dataset size; freezing
	// is never a baseline.
	MaxBaselineLevel = 4
)

// Ladder tuning values.
const (
	sampledCollisionRate  = 0.5
	defaultIndexCapacity  = 8
	coarseIndexCapacity   = 32
	coarseThetaBoost      = 0.3
	sparseSpacingInterval = 10
)

var ladder = []Optimization{
	OptReducedCollisionSampling,
	OptCoarseSpatialIndex,
	OptTickRateCap,
	OptSparseSpacing,
	OptFrozen,
}

// Optimizations lists the optimizations active at level. Tiers are
// cumulative.
func Optimizations(level int) []Optimization {
	level = clampLevel(level)
	return append([]Optimization(nil), ladder[:level]...)
}

// ApplyLevel writes the governor-owned fields of p for level.
func ApplyLevel(p *config.PerformanceConfig, level int) {
	level = clampLevel(level)
	p.ThrottleLevel = level

	p.CollisionSampleRate = 1
	if level >= 1 {
		p.CollisionSampleRate = sampledCollisionRate
	}

	p.IndexCapacity, p.ThetaBoost = defaultIndexCapacity, 0
	if level >= 2 {
		p.IndexCapacity, p.ThetaBoost = coarseIndexCapacity, coarseThetaBoost
	}

	p.TickRateCap = 0
	if level >= 3 {
		p.TickRateCap = p.MaxFrameRate / 2
	}

	p.SpacingInterval = 1
	if level >= 4 {
		p.SpacingInterval = sparseSpacingInterval
	}

	p.Frozen = level >= 5
}

// BaselineFor returns the throttle floor for a dataset of n nodes given
// the emergency threshold.
func BaselineFor(n, threshold int) int {
	if threshold <= 0 || n <= 0 {
		return 0
	}
	ratio := float64(n) / float64(threshold)
	switch {
	case ratio < 0.5:
		return 0
	case ratio < 1:
		return 1
	case ratio < 2:
		return 2
	case ratio < 4:
		return 3
	default:
		return MaxBaselineLevel
	}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
