package force

import "math"

// applyLinks pulls each link toward its rest distance. The correction is
// split by degree so hubs move less than leaves. Strength is used as given;
// the attracting correction is capped at the full gap so a strong link
// closes it in one tick instead of overshooting.
func applyLinks(in *Input) {
	if len(in.Links) == 0 {
		return
	}
	degree := make([]int, len(in.Nodes))
	for _, l := range in.Links {
		degree[l.Source]++
		degree[l.Target]++
	}

	for _, l := range in.Links {
		s, t := &in.Nodes[l.Source], &in.Nodes[l.Target]
		dx := t.X + t.VX - s.X - s.VX
		dy := t.Y + t.VY - s.Y - s.VY
		if dx == 0 && dy == 0 {
			dx, dy = Jitter(s.ID, t.ID)
		}
		d := math.Sqrt(dx*dx + dy*dy)
		k := math.Min((d-l.Distance)/d*in.Alpha*l.Strength, 1)
		dx, dy = dx*k, dy*k

		bias := float64(degree[l.Source]) / float64(degree[l.Source]+degree[l.Target])
		wt, ws := pairWeights(t.Pinned(), s.Pinned(), bias)
		t.VX -= dx * wt
		t.VY -= dy * wt
		s.VX += dx * ws
		s.VY += dy * ws
	}
}
