package diagnostics

import (
	"math"
	"time"

	"taskmap/internal/config"
	"taskmap/internal/perf"
	"taskmap/internal/types"
)

// Quality grades a layout.
type Quality string

const (
	QualityGood       Quality = "good"
	QualityAcceptable Quality = "acceptable"
	QualityPoor       Quality = "poor"
)

// Quality thresholds on overlap ratio; frame time is compared to one and
// two frame budgets respectively.
const (
	GoodOverlapRatio       = 0.01
	AcceptableOverlapRatio = 0.05
)

// CollisionReport summarizes spacing uniformity, overlaps and performance.
type CollisionReport struct {
	GeneratedAt        time.Time     `json:"generated_at" yaml:"generated_at"`
	NodeCount          int           `json:"node_count" yaml:"node_count"`
	OverlapCount       int           `json:"overlap_count" yaml:"overlap_count"`
	OverlapRatio       float64       `json:"overlap_ratio" yaml:"overlap_ratio"`
	AverageSeparation  float64       `json:"average_separation" yaml:"average_separation"`
	SeparationVariance float64       `json:"separation_variance" yaml:"separation_variance"`
	MinSeparation      float64       `json:"min_separation" yaml:"min_separation"`
	Collision          CollisionTest `json:"collision" yaml:"collision"`
	Performance        perf.Snapshot `json:"performance" yaml:"performance"`
	LayoutQuality      Quality       `json:"layout_quality" yaml:"layout_quality"`
	Recommendations    []string      `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}

// GenerateCollisionReport measures nearest-neighbor spacing and grades the
// layout together with the given performance snapshot.
func GenerateCollisionReport(nodes []types.PhysicsNode, cfg config.ForceLayoutConfig, snap perf.Snapshot) CollisionReport {
	test := TestCollisionDetection(nodes, cfg)
	r := CollisionReport{
		GeneratedAt:  time.Now(),
		NodeCount:    len(nodes),
		OverlapCount: len(test.Violations),
		Collision:    test,
		Performance:  snap,
	}
	if len(nodes) > 0 {
		r.OverlapRatio = float64(r.OverlapCount) / float64(len(nodes))
	}

	if len(nodes) > 1 {
		index := buildIndex(nodes, cfg)
		seps := make([]float64, 0, len(nodes))
		r.MinSeparation = math.Inf(1)
		for i, n := range nodes {
			if _, d, ok := index.Nearest(n.X, n.Y, i); ok {
				seps = append(seps, d)
				r.MinSeparation = math.Min(r.MinSeparation, d)
			}
		}
		r.AverageSeparation, r.SeparationVariance = meanVariance(seps)
	}

	r.LayoutQuality = Grade(r.OverlapRatio, snap.FrameTime, cfg.Performance.FrameBudget())
	r.Recommendations = append(r.Recommendations, test.Recommendations...)
	if snap.Load == perf.LoadOverloaded {
		r.Recommendations = append(r.Recommendations, "frames exceed budget; reduce the node count or performance.max_frame_rate")
	}
	if err := snap.Err(); err != nil {
		r.Recommendations = append(r.Recommendations, err.Error())
	}
	return r
}

// Grade rates a layout: good needs an overlap ratio of at most 1% within
// one frame budget, acceptable at most 5% within two.
func Grade(overlapRatio float64, frame, budget time.Duration) Quality {
	switch {
	case overlapRatio <= GoodOverlapRatio && frame <= budget:
		return QualityGood
	case overlapRatio <= AcceptableOverlapRatio && frame <= 2*budget:
		return QualityAcceptable
	default:
		return QualityPoor
	}
}

func meanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	return mean, variance / float64(len(xs))
}
