package qq

import (
	"math"
	"sort"
)

// Interpolation and extrapolation policy names as used in configuration.
const (
	InterpolationLinear = "linear"

	// ExtrapolationFlat clamps queries outside the known range to the
	// nearest boundary value.
	ExtrapolationFlat   = "flat"
	ExtrapolationLinear = "linear"
)

// Interpolator estimates y at x from ordered knots. Implementations define
// their own behavior outside [xs[0], xs[len-1]].
type Interpolator interface {
	Interpolate(xs, ys []float64, x float64) float64
}

// LinearInterpolator connects adjacent knots with straight segments. The
// knot xs must be sorted ascending; equal consecutive xs behave as steps.
type LinearInterpolator struct {
	Extrapolation string
}

// newInterpolator builds the interpolator described by validated options.
func newInterpolator(o Options) Interpolator {
	return &LinearInterpolator{Extrapolation: o.Extrapolation}
}

// Interpolate returns the linear estimate of y at x. Queries outside the
// knot range follow the extrapolation policy: flat clamps to the edge
// value, linear extends the outermost segment's slope.
func (li *LinearInterpolator) Interpolate(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return ys[0]
	}

	if x <= xs[0] {
		if x == xs[0] {
			return ys[0]
		}
		if li.Extrapolation == ExtrapolationLinear {
			return extendEdge(xs, ys, x, true)
		}
		return ys[0]
	}
	if x >= xs[n-1] {
		if x == xs[n-1] {
			return ys[n-1]
		}
		if li.Extrapolation == ExtrapolationLinear {
			return extendEdge(xs, ys, x, false)
		}
		return ys[n-1]
	}

	// First knot at or beyond x; xs[i-1] < x <= xs[i] holds here.
	i := sort.SearchFloat64s(xs, x)
	if xs[i] == x {
		// Land on the rightmost of equal knots.
		for i+1 < n && xs[i+1] == x {
			i++
		}
		return ys[i]
	}
	t := (x - xs[i-1]) / (xs[i] - xs[i-1])
	return ys[i-1] + t*(ys[i]-ys[i-1])
}

// extendEdge continues the first or last segment with nonzero width. A
// fully degenerate knot set falls back to the edge value.
func extendEdge(xs, ys []float64, x float64, low bool) float64 {
	n := len(xs)
	if low {
		for j := 1; j < n; j++ {
			if xs[j] > xs[0] {
				slope := (ys[j] - ys[0]) / (xs[j] - xs[0])
				return ys[0] + slope*(x-xs[0])
			}
		}
		return ys[0]
	}
	for j := n - 2; j >= 0; j-- {
		if xs[j] < xs[n-1] {
			slope := (ys[n-1] - ys[j]) / (xs[n-1] - xs[j])
			return ys[n-1] + slope*(x-xs[n-1])
		}
	}
	return ys[n-1]
}
