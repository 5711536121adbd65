package viewport

import "fmt"

// Easing maps linear progress in [0, 1] onto eased progress.
type Easing func(t float64) float64

// Linear easing.
func Linear(t float64) float64 { return t }

// EaseIn is cubic ease-in.
func EaseIn(t float64) float64 { return t * t * t }

// EaseOut is cubic ease-out.
func EaseOut(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// EaseInOut is cubic ease-in-out.
func EaseInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

var easings = map[string]Easing{
	"linear":      Linear,
	"ease-in":     EaseIn,
	"ease-out":    EaseOut,
	"ease-in-out": EaseInOut,
}

// ParseEasing resolves an easing name.
func ParseEasing(name string) (Easing, error) {
	if e, ok := easings[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("unknown easing %q", name)
}
