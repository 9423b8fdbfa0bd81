package qq

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Curve is one day's correction keyed by reference quantile values. For
// additive corrections Y holds quantile differences, for multiplicative
// ones quantile ratios floored at zero.
type Curve struct {
	X []float64 `msgpack:"x"`
	Y []float64 `msgpack:"y"`
}

// nonMissing copies the non-NaN subset of values.
func nonMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// missingFraction is the NaN share of values; an empty slice counts as
// fully missing.
func missingFraction(values []float64) float64 {
	if len(values) == 0 {
		return 1
	}
	miss := 0
	for _, v := range values {
		if math.IsNaN(v) {
			miss++
		}
	}
	return float64(miss) / float64(len(values))
}

// quantiles evaluates the empirical quantiles of the non-missing subset of
// values at each probability point. It returns nil when nothing remains.
func quantiles(values, probs []float64) []float64 {
	clean := nonMissing(values)
	if len(clean) == 0 {
		return nil
	}
	sort.Float64s(clean)
	out := make([]float64, len(probs))
	for i, p := range probs {
		out[i] = stat.Quantile(p, stat.LinInterp, clean, nil)
	}
	return out
}

// buildCurve derives the correction curve between observation and
// reference samples at the given probability points.
func buildCurve(obs, ref, probs []float64, method Method) *Curve {
	obsQ := quantiles(obs, probs)
	refQ := quantiles(ref, probs)
	if obsQ == nil || refQ == nil {
		return nil
	}
	y := make([]float64, len(probs))
	switch method {
	case Multiplicative:
		for i := range y {
			r := obsQ[i] / refQ[i]
			if r < 0 {
				r = 0
			}
			y[i] = r
		}
	default:
		for i := range y {
			y[i] = obsQ[i] - refQ[i]
		}
	}
	return &Curve{X: refQ, Y: y}
}

// correct applies the curve to a single non-missing value.
func (c *Curve) correct(v float64, method Method, ip Interpolator) float64 {
	adj := ip.Interpolate(c.X, c.Y, v)
	if method == Multiplicative {
		return v * adj
	}
	return v + adj
}
