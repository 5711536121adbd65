package force

import (
	"math"

	"taskmap/internal/spatial"
)

// applyCollision pushes overlapping nodes apart until their predicted
// positions are at least the pairwise separation apart. It is not scaled
// by alpha so the separation floor holds after cooling.
func applyCollision(in *Input) {
	n := len(in.Nodes)
	if n < 2 || in.Params.CollisionStrength == 0 {
		return
	}
	iterations := max(in.Params.CollisionIterations, 1)

	maxRadius := 0.0
	for i := range in.Nodes {
		maxRadius = math.Max(maxRadius, in.radius(i))
	}

	stride := 1
	if in.Params.SampleRate < 1 {
		stride = int(math.Round(1 / in.Params.SampleRate))
	}
	sampled := func(i int) bool {
		return stride == 1 || (uint64(i)+in.Tick)%uint64(stride) == 0
	}

	items := make([]spatial.Item, n)
	for iter := 0; iter < iterations; iter++ {
		for i := range in.Nodes {
			nd := &in.Nodes[i]
			items[i] = spatial.Item{Index: i, X: nd.X + nd.VX, Y: nd.Y + nd.VY}
		}
		index := spatial.Build(items, spatial.Options{Capacity: in.Params.IndexCapacity})

		for i := range in.Nodes {
			if !sampled(i) {
				continue
			}
			ri := in.radius(i)
			reach := in.Params.Spacing.MaxReach(ri, maxRadius)
			index.Query(items[i].X, items[i].Y, reach, func(it spatial.Item) bool {
				j := it.Index
				// Each pair is handled once: by the lower index when both
				// sides are sampled this tick.
				if j == i || (j < i && sampled(j)) {
					return true
				}
				collide(in, i, j, ri)
				return true
			})
		}
	}
}

func collide(in *Input, i, j int, ri float64) {
	a, b := &in.Nodes[i], &in.Nodes[j]
	pa, pb := a.Pinned(), b.Pinned()
	if pa && pb {
		return
	}
	rj := in.radius(j)
	target := in.Params.Spacing.Separation(ri, rj, in.sameCluster(i, j))

	dx := (a.X + a.VX) - (b.X + b.VX)
	dy := (a.Y + a.VY) - (b.Y + b.VY)
	d2 := dx*dx + dy*dy
	if d2 >= target*target {
		return
	}
	if d2 == 0 {
		dx, dy = Jitter(b.ID, a.ID)
		d2 = dx*dx + dy*dy
	}
	d := math.Sqrt(d2)
	k := (target - d) / d * in.Params.CollisionStrength
	dx, dy = dx*k, dy*k

	// Larger nodes move less.
	share := 0.5
	if ri+rj > 0 {
		share = rj * rj / (ri*ri + rj*rj)
	}
	wa, wb := pairWeights(pa, pb, share)
	a.VX += dx * wa
	a.VY += dy * wa
	b.VX -= dx * wb
	b.VY -= dy * wb
}
