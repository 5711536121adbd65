// Package spacing derives per-node collision radii, link rest lengths and
// cluster membership from task attributes and local density.
package spacing

import (
	"math"
	"sort"

	"taskmap/internal/config"
	"taskmap/internal/logging"
	"taskmap/internal/spatial"
	"taskmap/internal/types"
)

// Params is the subset of the configuration spacing reads.
type Params struct {
	Enabled              bool
	CollisionRadius      float64
	MinNodeSeparation    float64
	PriorityMultiplier   float64
	DensityAdaptation    bool
	DensityFactor        float64
	MaxDensityMultiplier float64
	ClusterSpacing       float64
	ClusterBy            string
	FocusEnabled         bool
	ActiveMultiplier     float64
	LinkDistance         float64
}

// ParamsFrom extracts spacing parameters from cfg.
func ParamsFrom(cfg config.ForceLayoutConfig) Params {
	s := cfg.SmartSpacing
	return Params{
		Enabled:              s.Enabled,
		CollisionRadius:      cfg.Forces.CollisionRadius,
		MinNodeSeparation:    s.MinNodeSeparation,
		PriorityMultiplier:   s.PrioritySpacingMultiplier,
		DensityAdaptation:    s.DensityAdaptation,
		DensityFactor:        s.DensityFactor,
		MaxDensityMultiplier: s.MaxDensityMultiplier,
		ClusterSpacing:       s.ClusterSpacing,
		ClusterBy:            s.ClusterBy,
		FocusEnabled:         cfg.Focus.Enabled,
		ActiveMultiplier:     cfg.Focus.ActiveSpacingMultiplier,
		LinkDistance:         cfg.Forces.LinkDistance,
	}
}

// DensityRadius is the neighborhood sampled for density adaptation:
// cluster_spacing, or twice the collision radius when spacing is zero.
func (p Params) DensityRadius() float64 {
	if p.ClusterSpacing > 0 {
		return p.ClusterSpacing
	}
	return 2 * p.CollisionRadius
}

// Radius computes the effective collision radius of a node with the given
// number of neighbors inside DensityRadius.
func (p Params) Radius(n *types.PhysicsNode, neighbors int) float64 {
	r := p.CollisionRadius
	if p.Enabled {
		if n.High && p.PriorityMultiplier > 0 {
			r *= p.PriorityMultiplier
		}
		if p.DensityAdaptation && neighbors > 0 {
			m := 1 + p.DensityFactor*float64(neighbors)
			if p.MaxDensityMultiplier >= 1 {
				m = math.Min(m, p.MaxDensityMultiplier)
			}
			r *= m
		}
	}
	if n.Active && p.FocusEnabled && p.ActiveMultiplier > 0 {
		r *= p.ActiveMultiplier
	}
	return r
}

// Radii computes the effective radius of every node. index must have been
// built from the same node slice; it may be nil when density adaptation
// is off.
func Radii(nodes []types.PhysicsNode, index *spatial.Quadtree, p Params) []float64 {
	radii := make([]float64, len(nodes))
	useDensity := p.Enabled && p.DensityAdaptation && index != nil
	dr := p.DensityRadius()
	for i := range nodes {
		neighbors := 0
		if useDensity {
			neighbors = index.CountWithin(nodes[i].X, nodes[i].Y, dr, i)
		}
		radii[i] = p.Radius(&nodes[i], neighbors)
	}
	return radii
}

// Separation is the minimum center distance collision resolution enforces
// between two nodes.
func (p Params) Separation(ri, rj float64, sameCluster bool) float64 {
	d := ri + rj
	if !p.Enabled {
		return d
	}
	if !sameCluster {
		d += p.ClusterSpacing
	}
	return math.Max(d, p.MinNodeSeparation)
}

// LinkDistanceFor is the rest length of a link between nodes of radii rs and
// rt. Without smart spacing it is the configured base distance.
func (p Params) LinkDistanceFor(rs, rt float64, sameCluster bool) float64 {
	d := p.LinkDistance
	if !p.Enabled {
		return d
	}
	d = math.Max(d, rs+rt)
	if !sameCluster {
		d += p.ClusterSpacing
	}
	return math.Max(d, p.MinNodeSeparation)
}

// MaxReach is the largest separation any node with radius r can require,
// given the largest radius in the layout. It bounds neighbor queries.
func (p Params) MaxReach(r, maxRadius float64) float64 {
	return p.Separation(r, maxRadius, false)
}

// Clusters assigns a dense cluster number to every node. Nodes sharing a
// number are treated as one cluster.
func Clusters(nodes []types.PhysicsNode, links []types.PhysicsLink, mode string) []int {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	useTags := false
	switch mode {
	case config.ClusterTags:
		useTags = true
	case config.ClusterComponents:
	default:
		for _, n := range nodes {
			if n.Cluster != "" {
				useTags = true
				break
			}
		}
	}

	labels := make([]string, len(nodes))
	if useTags {
		for i, n := range nodes {
			labels[i] = "tag:" + n.Cluster
		}
		if mode != config.ClusterTags {
			// Untagged nodes fall back to their component.
			comp := components(nodes, links, index)
			for i, n := range nodes {
				if n.Cluster == "" {
					labels[i] = "component:" + comp[i]
				}
			}
		}
	} else {
		comp := components(nodes, links, index)
		for i := range nodes {
			labels[i] = "component:" + comp[i]
		}
	}
	out := densify(labels)
	if logging.IsCategoryEnabled(logging.CategorySpacing) {
		n := 0
		for _, c := range out {
			n = max(n, c+1)
		}
		logging.Get(logging.CategorySpacing).Debug("clusters: %d nodes in %d clusters (mode=%q tags=%v)", len(nodes), n, mode, useTags)
	}
	return out
}

// components labels each node with the id of its component root.
func components(nodes []types.PhysicsNode, links []types.PhysicsLink, index map[string]int) []string {
	parent := make([]int, len(nodes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for _, l := range links {
		s, okS := index[l.Source]
		t, okT := index[l.Target]
		if !okS || !okT {
			continue
		}
		rs, rt := find(s), find(t)
		if rs == rt {
			continue
		}
		// Lower index wins so labels are stable for a given node order.
		if rs < rt {
			parent[rt] = rs
		} else {
			parent[rs] = rt
		}
	}
	out := make([]string, len(nodes))
	for i := range nodes {
		out[i] = nodes[find(i)].ID
	}
	return out
}

func densify(labels []string) []int {
	uniq := make([]string, 0)
	seen := make(map[string]bool)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			uniq = append(uniq, l)
		}
	}
	sort.Strings(uniq)
	ids := make(map[string]int, len(uniq))
	for i, l := range uniq {
		ids[l] = i
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = ids[l]
	}
	return out
}
