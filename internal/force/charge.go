package force

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"taskmap/internal/logging"
)

// distanceMin2 clamps the squared distance used by the charge force so
// near-coincident nodes do not receive unbounded kicks.
const distanceMin2 = 1.0

// body adapts a node to barneshut.Particle2.
type body struct {
	pos r2.Vec
}

func (b *body) Coord2() r2.Vec { return b.pos }
func (b *body) Mass() float64  { return 1 }

// maxNudges bounds the attempts to move a node off an occupied position.
// Each attempt doubles the jitter so it eventually exceeds the float
// spacing at large coordinates.
const maxNudges = 64

// bodies builds one particle per node, nudging coincident nodes apart so
// the Barnes-Hut tree never has to split two identical points. ok is false
// when the particles cannot go into a tree: some node is non-finite or some
// coincident pair could not be separated.
func bodies(in *Input) (particles []barneshut.Particle2, ok bool) {
	ok = true
	seen := make(map[r2.Vec]int, len(in.Nodes))
	particles = make([]barneshut.Particle2, len(in.Nodes))
	for i := range in.Nodes {
		n := &in.Nodes[i]
		pos := r2.Vec{X: n.X, Y: n.Y}
		if !finite(pos) {
			particles[i] = &body{pos: pos}
			ok = false
			continue
		}
		for attempt, scale := 0, 1.0; ; attempt, scale = attempt+1, scale*2 {
			j, dup := seen[pos]
			if !dup {
				seen[pos] = i
				break
			}
			if attempt == maxNudges {
				ok = false
				break
			}
			dx, dy := Jitter(in.Nodes[j].ID, n.ID)
			pos = r2.Vec{X: pos.X - dx*scale, Y: pos.Y - dy*scale}
		}
		particles[i] = &body{pos: pos}
	}
	return particles, ok
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// repulsion is the many-body kernel. v points from the receiving particle
// to the source; a negative strength pushes away from it.
func repulsion(strength float64) barneshut.Force2 {
	return func(_, _ barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		d2 := v.X*v.X + v.Y*v.Y
		if d2 == 0 {
			return r2.Vec{}
		}
		if d2 < distanceMin2 {
			d2 = distanceMin2
		}
		return r2.Scale(strength*m2/d2, v)
	}
}

// applyCharge adds the many-body force using a Barnes-Hut approximation.
// Large layouts split the per-node traversals across workers.
func applyCharge(ctx context.Context, in *Input) error {
	strength := in.Params.ChargeStrength * in.Alpha
	if strength == 0 || len(in.Nodes) < 2 {
		return nil
	}
	particles, treeable := bodies(in)
	kernel := repulsion(strength)
	forces := make([]r2.Vec, len(particles))

	var plane *barneshut.Plane
	var err error
	if treeable {
		plane, err = barneshut.NewPlane(particles)
	}
	if !treeable || err != nil {
		// Non-finite or inseparable coordinates: exact sum over finite nodes.
		logging.Get(logging.CategoryForce).Debug("charge: brute-force fallback for %d nodes (tree=%v err=%v)", len(particles), treeable, err)
		bruteCharge(particles, kernel, forces)
	} else {
		theta := in.Params.Theta
		each := func(lo, hi int) {
			for i := lo; i < hi; i++ {
				forces[i] = plane.ForceOn(particles[i], theta, kernel)
			}
		}
		if err := parallel(ctx, len(particles), in.Params.ParallelThreshold, in.Params.Workers, each); err != nil {
			return err
		}
	}

	for i := range in.Nodes {
		n := &in.Nodes[i]
		if n.Pinned() {
			continue
		}
		f := forces[i]
		if math.IsNaN(f.X) || math.IsNaN(f.Y) {
			continue
		}
		n.VX += f.X
		n.VY += f.Y
	}
	return nil
}

func bruteCharge(particles []barneshut.Particle2, kernel barneshut.Force2, out []r2.Vec) {
	for i, p := range particles {
		pi := p.Coord2()
		if !finite(pi) {
			continue
		}
		var sum r2.Vec
		for j, q := range particles {
			qj := q.Coord2()
			if i == j || !finite(qj) {
				continue
			}
			sum = r2.Add(sum, kernel(p, q, p.Mass(), q.Mass(), r2.Sub(qj, pi)))
		}
		out[i] = sum
	}
}

// parallel runs fn over [0, n) in contiguous chunks. Below threshold, or
// with a single worker, it runs inline.
func parallel(ctx context.Context, n, threshold, workers int, fn func(lo, hi int)) error {
	if threshold <= 0 || n < threshold || workers <= 1 {
		fn(0, n)
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(lo, hi)
			return nil
		})
	}
	return g.Wait()
}
