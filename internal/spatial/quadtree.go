// Package spatial provides a point quadtree used for neighbor and radius
// queries during collision resolution, density sampling and diagnostics.
package spatial

import "math"

const (
	// DefaultCapacity is the leaf capacity before a quad subdivides.
	DefaultCapacity = 8
	// DefaultMaxDepth bounds subdivision so coincident points cannot
	// recurse forever.
	DefaultMaxDepth = 24
)

// Item is an indexed point. Index refers back into the caller's slice.
type Item struct {
	Index int
	X, Y  float64
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Width of the box.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height of the box.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// distance2 is the squared distance from (x, y) to the nearest point of r.
func (r Rect) distance2(x, y float64) float64 {
	dx := math.Max(math.Max(r.MinX-x, 0), x-r.MaxX)
	dy := math.Max(math.Max(r.MinY-y, 0), y-r.MaxY)
	return dx*dx + dy*dy
}

// Options tunes the tree shape. Larger capacities give a coarser index.
type Options struct {
	Capacity int
	MaxDepth int
}

func (o Options) normalized() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

type quad struct {
	region   Rect
	depth    int
	items    []Item
	children [4]*quad
}

func (q *quad) leaf() bool { return q.children[0] == nil }

// Quadtree is an immutable point index built from a snapshot of positions.
type Quadtree struct {
	root  *quad
	opts  Options
	size  int
	depth int
}

// Build indexes items. Points with NaN coordinates are skipped.
func Build(items []Item, opts Options) *Quadtree {
	opts = opts.normalized()
	qt := &Quadtree{opts: opts}

	bounds, ok := boundsOf(items)
	if !ok {
		return qt
	}
	qt.root = &quad{region: bounds}
	for _, it := range items {
		if math.IsNaN(it.X) || math.IsNaN(it.Y) {
			continue
		}
		qt.insert(qt.root, it)
		qt.size++
	}
	return qt
}

// boundsOf returns a square region covering every finite point.
func boundsOf(items []Item) (Rect, bool) {
	r := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	found := false
	for _, it := range items {
		if math.IsNaN(it.X) || math.IsNaN(it.Y) {
			continue
		}
		found = true
		r.MinX = math.Min(r.MinX, it.X)
		r.MinY = math.Min(r.MinY, it.Y)
		r.MaxX = math.Max(r.MaxX, it.X)
		r.MaxY = math.Max(r.MaxY, it.Y)
	}
	if !found {
		return Rect{}, false
	}
	side := math.Max(math.Max(r.Width(), r.Height()), 1)
	r.MaxX = r.MinX + side
	r.MaxY = r.MinY + side
	return r, true
}

func (qt *Quadtree) insert(q *quad, it Item) {
	for !q.leaf() {
		q = q.children[quadrant(q.region, it.X, it.Y)]
	}
	if q.depth > qt.depth {
		qt.depth = q.depth
	}
	if len(q.items) < qt.opts.Capacity || q.depth >= qt.opts.MaxDepth {
		q.items = append(q.items, it)
		return
	}
	qt.subdivide(q)
	qt.insert(q.children[quadrant(q.region, it.X, it.Y)], it)
}

func (qt *Quadtree) subdivide(q *quad) {
	r := q.region
	midX := r.MinX + r.Width()/2
	midY := r.MinY + r.Height()/2

	q.children[0] = &quad{region: Rect{r.MinX, r.MinY, midX, midY}, depth: q.depth + 1} // top left
	q.children[1] = &quad{region: Rect{midX, r.MinY, r.MaxX, midY}, depth: q.depth + 1} // top right
	q.children[2] = &quad{region: Rect{r.MinX, midY, midX, r.MaxY}, depth: q.depth + 1} // bottom left
	q.children[3] = &quad{region: Rect{midX, midY, r.MaxX, r.MaxY}, depth: q.depth + 1} // bottom right

	items := q.items
	q.items = nil
	for _, it := range items {
		qt.insert(q.children[quadrant(r, it.X, it.Y)], it)
	}
}

func quadrant(r Rect, x, y float64) int {
	midX := r.MinX + r.Width()/2
	midY := r.MinY + r.Height()/2
	i := 0
	if x >= midX {
		i++
	}
	if y >= midY {
		i += 2
	}
	return i
}

// Len returns the number of indexed points.
func (qt *Quadtree) Len() int { return qt.size }

// Depth returns the deepest populated level.
func (qt *Quadtree) Depth() int { return qt.depth }

// Options returns the shape the tree was built with.
func (qt *Quadtree) Options() Options { return qt.opts }

// Bounds returns the root region.
func (qt *Quadtree) Bounds() Rect {
	if qt.root == nil {
		return Rect{}
	}
	return qt.root.region
}

// Query visits every item within radius of (x, y). Visiting stops early
// when visit returns false.
func (qt *Quadtree) Query(x, y, radius float64, visit func(Item) bool) {
	if qt.root == nil || radius < 0 {
		return
	}
	r2 := radius * radius
	stack := []*quad{qt.root}
	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if q.region.distance2(x, y) > r2 {
			continue
		}
		if !q.leaf() {
			stack = append(stack, q.children[:]...)
			continue
		}
		for _, it := range q.items {
			dx, dy := it.X-x, it.Y-y
			if dx*dx+dy*dy <= r2 && !visit(it) {
				return
			}
		}
	}
}

// CountWithin counts items within radius of (x, y), ignoring the item
// whose Index equals exclude.
func (qt *Quadtree) CountWithin(x, y, radius float64, exclude int) int {
	n := 0
	qt.Query(x, y, radius, func(it Item) bool {
		if it.Index != exclude {
			n++
		}
		return true
	})
	return n
}

// Nearest returns the closest item to (x, y) other than exclude, with its
// distance. ok is false when no such item exists.
func (qt *Quadtree) Nearest(x, y float64, exclude int) (best Item, dist float64, ok bool) {
	if qt.root == nil {
		return Item{}, 0, false
	}
	bestD2 := math.Inf(1)
	var walk func(q *quad)
	walk = func(q *quad) {
		if q.region.distance2(x, y) >= bestD2 {
			return
		}
		if q.leaf() {
			for _, it := range q.items {
				if it.Index == exclude {
					continue
				}
				dx, dy := it.X-x, it.Y-y
				if d2 := dx*dx + dy*dy; d2 < bestD2 {
					bestD2, best, ok = d2, it, true
				}
			}
			return
		}
		// Descend into the quadrant holding the point first so the bound
		// tightens early.
		first := quadrant(q.region, x, y)
		walk(q.children[first])
		for i, c := range q.children {
			if i != first {
				walk(c)
			}
		}
	}
	walk(qt.root)
	if !ok {
		return Item{}, 0, false
	}
	return best, math.Sqrt(bestD2), true
}
