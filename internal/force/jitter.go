package force

import (
	"hash/fnv"
	"math"
)

// jitterScale is the magnitude of the displacement used to separate
// coincident nodes.
const jitterScale = 1e-2

// Jitter returns a small deterministic displacement for the ordered pair
// (a, b). Jitter(b, a) is its negation, so coincident nodes are pushed in
// opposite directions.
func Jitter(a, b string) (dx, dy float64) {
	lo, hi, sign := a, b, 1.0
	if b < a {
		lo, hi, sign = b, a, -1
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(lo))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(hi))
	sum := h.Sum64()

	angle := float64(sum%3600) / 3600 * 2 * math.Pi
	mag := jitterScale * (0.5 + float64((sum>>16)%1000)/2000)
	return sign * mag * math.Cos(angle), sign * mag * math.Sin(angle)
}
