package simulation

import (
	"errors"
	"hash/fnv"
	"math"

	"taskmap/internal/logging"
	"taskmap/internal/spacing"
	"taskmap/internal/spatial"
	"taskmap/internal/types"
)

// goldenAngle spaces successive fallback placements on a phyllotaxis
// spiral.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

type resolvedLink struct {
	source, target int
	link           types.PhysicsLink
	strength       float64
	distance       float64
}

// SetData replaces the node and link set. Nodes whose id survives keep
// their position, velocity and pin. New nodes take their position from
// initial when present and are otherwise placed deterministically, next to
// a surviving neighbor or on a spiral around the center. Duplicate ids and
// links naming unknown nodes are dropped and reported in the returned
// error; the rest of the data is applied.
func (s *Simulation) SetData(nodes []types.PhysicsNode, links []types.PhysicsLink, initial map[string]types.Point) error {
	s.mu.Lock()
	prev, prevIndex := s.nodes, s.index

	var errs []error
	out := make([]types.PhysicsNode, 0, len(nodes))
	index := make(map[string]int, len(nodes))
	placed := make([]bool, 0, len(nodes))
	retained := 0
	for _, in := range nodes {
		if _, dup := index[in.ID]; dup {
			errs = append(errs, &DuplicateNodeError{ID: in.ID})
			continue
		}
		n := in.Clone()
		n.Active = s.activeID != "" && in.ID == s.activeID
		ok := false
		if j, found := prevIndex[in.ID]; found {
			old := prev[j]
			n.X, n.Y, n.VX, n.VY = old.X, old.Y, old.VX, old.VY
			if !n.Pinned() && old.Pinned() {
				c := old.Clone()
				n.FX, n.FY = c.FX, c.FY
			}
			ok = true
			retained++
		} else if p, found := initial[in.ID]; found {
			n.X, n.Y = p.X, p.Y
			ok = true
		}
		if ok && !(finite(n.X) && finite(n.Y)) {
			ok = false
		}
		if n.Pinned() {
			n.X, n.Y = *n.FX, *n.FY
			ok = true
		}
		index[n.ID] = len(out)
		out = append(out, n)
		placed = append(placed, ok)
	}

	kept := make([]types.PhysicsLink, 0, len(links))
	for _, l := range links {
		_, okS := index[l.Source]
		_, okT := index[l.Target]
		switch {
		case !okS:
			errs = append(errs, &UnknownNodeError{Op: "link", ID: l.Source})
		case !okT:
			errs = append(errs, &UnknownNodeError{Op: "link", ID: l.Target})
		default:
			kept = append(kept, l)
		}
	}

	if _, ok := index[s.activeID]; !ok {
		s.activeID = ""
	}
	s.nodes, s.index, s.links = out, index, kept
	s.placeLocked(placed)
	s.rebuildClustersLocked()
	s.refreshSpacingLocked()
	logging.SimulationDebug("set data: nodes=%d links=%d retained=%d", len(out), len(kept), retained)
	s.mu.Unlock()

	s.report(errs...)
	return errors.Join(errs...)
}

// placeLocked positions every node whose placed flag is false.
func (s *Simulation) placeLocked(placed []bool) {
	neighbors := make(map[int][]int)
	for _, l := range s.links {
		si, ti := s.index[l.Source], s.index[l.Target]
		neighbors[si] = append(neighbors[si], ti)
		neighbors[ti] = append(neighbors[ti], si)
	}

	cx, cy := s.cfg.Dimensions.Width/2, s.cfg.Dimensions.Height/2
	step := math.Max(s.cfg.SmartSpacing.MinNodeSeparation, 2*s.cfg.Forces.CollisionRadius) / 2
	if step <= 0 {
		step = 10
	}
	spiral := 0
	for i := range s.nodes {
		if placed[i] {
			continue
		}
		n := &s.nodes[i]
		anchor := -1
		for _, j := range neighbors[i] {
			if placed[j] {
				anchor = j
				break
			}
		}
		if anchor >= 0 {
			a := &s.nodes[anchor]
			angle := hashAngle(n.ID)
			d := s.cfg.Forces.LinkDistance
			n.X, n.Y = a.X+d*math.Cos(angle), a.Y+d*math.Sin(angle)
		} else {
			r := step * math.Sqrt(0.5+float64(spiral))
			angle := float64(spiral) * goldenAngle
			n.X, n.Y = cx+r*math.Cos(angle), cy+r*math.Sin(angle)
			spiral++
		}
		n.VX, n.VY = 0, 0
		placed[i] = true
	}
}

func hashAngle(id string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return float64(h.Sum32()%3600) / 3600 * 2 * math.Pi
}

func (s *Simulation) rebuildClustersLocked() {
	s.clusters = spacing.Clusters(s.nodes, s.links, s.cfg.SmartSpacing.ClusterBy)
}

// refreshSpacingLocked recomputes effective radii from current positions
// and re-derives link strengths and rest lengths.
func (s *Simulation) refreshSpacingLocked() {
	p := spacing.ParamsFrom(s.cfg)
	var index *spatial.Quadtree
	if p.Enabled && p.DensityAdaptation {
		items := make([]spatial.Item, len(s.nodes))
		for i, n := range s.nodes {
			items[i] = spatial.Item{Index: i, X: n.X, Y: n.Y}
		}
		index = spatial.Build(items, spatial.Options{Capacity: s.cfg.Performance.IndexCapacity})
	}
	s.radii = spacing.Radii(s.nodes, index, p)
	for i := range s.nodes {
		s.nodes[i].Radius = s.radii[i]
	}

	focus := s.cfg.Focus
	s.resolved = s.resolved[:0]
	for _, l := range s.links {
		si, ti := s.index[l.Source], s.index[l.Target]
		strength := l.Strength
		if strength <= 0 {
			strength = s.cfg.Forces.LinkStrength
		}
		if focus.Enabled && (s.nodes[si].Active || s.nodes[ti].Active) {
			strength *= focus.FocusStrength
		}
		base := p
		if l.Distance > 0 {
			base.LinkDistance = l.Distance
		}
		same := len(s.clusters) != len(s.nodes) || s.clusters[si] == s.clusters[ti]
		s.resolved = append(s.resolved, resolvedLink{
			source:   si,
			target:   ti,
			link:     l,
			strength: strength,
			distance: base.LinkDistanceFor(s.radii[si], s.radii[ti], same),
		})
	}
}

// SetActive marks id as the active node and clears the previous one. An
// empty id clears the active node.
func (s *Simulation) SetActive(id string) error {
	s.mu.Lock()
	if id != "" {
		if _, ok := s.index[id]; !ok {
			s.mu.Unlock()
			err := &UnknownNodeError{Op: "set active", ID: id}
			s.report(err)
			return err
		}
	}
	s.activeID = id
	for i := range s.nodes {
		s.nodes[i].Active = id != "" && s.nodes[i].ID == id
	}
	s.refreshSpacingLocked()
	s.mu.Unlock()
	return nil
}

// ActiveID returns the active node id, or "".
func (s *Simulation) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetFixedPosition pins id at (x, y). Non-finite coordinates are rejected
// and leave the node untouched.
func (s *Simulation) SetFixedPosition(id string, x, y float64) error {
	if !finite(x) || !finite(y) {
		err := &InvalidPositionError{ID: id, X: x, Y: y}
		s.report(err)
		return err
	}
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		err := &UnknownNodeError{Op: "set fixed position", ID: id}
		s.report(err)
		return err
	}
	s.nodes[i].Pin(x, y)
	s.mu.Unlock()
	return nil
}

// ReleaseFixedPosition unpins id.
func (s *Simulation) ReleaseFixedPosition(id string) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		err := &UnknownNodeError{Op: "release fixed position", ID: id}
		s.report(err)
		return err
	}
	s.nodes[i].Unpin()
	s.mu.Unlock()
	return nil
}

// ReleaseFixedPositions unpins every node.
func (s *Simulation) ReleaseFixedPositions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.nodes {
		s.nodes[i].Unpin()
	}
}

// Nodes returns a snapshot of every node.
func (s *Simulation) Nodes() []types.PhysicsNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Node returns a snapshot of one node.
func (s *Simulation) Node(id string) (types.PhysicsNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return types.PhysicsNode{}, false
	}
	return s.nodes[i].Clone(), true
}

// Links returns the links with their effective strength and distance.
func (s *Simulation) Links() []types.PhysicsLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PhysicsLink, len(s.resolved))
	for i, l := range s.resolved {
		out[i] = types.PhysicsLink{
			Source:   l.link.Source,
			Target:   l.link.Target,
			Strength: l.strength,
			Distance: l.distance,
		}
	}
	return out
}

func (s *Simulation) snapshotLocked() []types.PhysicsNode {
	out := make([]types.PhysicsNode, len(s.nodes))
	for i := range s.nodes {
		out[i] = s.nodes[i].Clone()
	}
	return out
}
