// Package qq implements quantile-quantile mapping bias correction of
// gridded climate series. Per day-of-year empirical transfer functions map
// a reference model distribution onto an observed one, either cell by cell
// in a single pass or as a pooled transfer function fitted once and applied
// to any number of target grids.
package qq

import "fmt"

// Method selects how a correction curve combines with target values.
type Method string

const (
	// Additive corrections shift target values by the quantile difference.
	Additive Method = "additive"
	// Multiplicative corrections scale target values by the quantile ratio.
	Multiplicative Method = "multiplicative"
)

// Options control a correction run. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	Method        Method
	Detrend       bool
	DetrendDegree int
	Window        int     // day-of-year window radius
	RankN         int     // number of quantile probability points
	ThresNaN      float64 // missing-fraction threshold per window
	KeepOriginal  bool    // fall back to uncorrected values when gated
	Interpolation string  // between-bin behavior
	Extrapolation string  // outside-range behavior
	Partition     float64 // fraction of cells pooled in aggregate fitting
	Workers       int     // 0 means one worker per CPU
}

// DefaultOptions returns the standard correction settings.
func DefaultOptions() Options {
	return Options{
		Method:        Additive,
		Detrend:       false,
		DetrendDegree: 4,
		Window:        15,
		RankN:         50,
		ThresNaN:      0.10,
		KeepOriginal:  false,
		Interpolation: InterpolationLinear,
		Extrapolation: ExtrapolationFlat,
		Partition:     1.0,
	}
}

func (o Options) validate() error {
	switch o.Method {
	case Additive, Multiplicative:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, o.Method)
	}
	if o.Window < 1 || o.Window >= 183 {
		return fmt.Errorf("window radius %d out of range [1,182]", o.Window)
	}
	if o.RankN < 2 {
		return fmt.Errorf("rankn %d: need at least two probability points", o.RankN)
	}
	if o.ThresNaN < 0 || o.ThresNaN > 1 {
		return fmt.Errorf("thresnan %v out of range [0,1]", o.ThresNaN)
	}
	if o.Partition <= 0 || o.Partition > 1 {
		return fmt.Errorf("partition %v out of range (0,1]", o.Partition)
	}
	if o.Detrend && o.DetrendDegree < 1 {
		return fmt.Errorf("detrend degree %d: need at least 1", o.DetrendDegree)
	}
	switch o.Interpolation {
	case InterpolationLinear:
	default:
		return fmt.Errorf("unknown interpolation policy %q", o.Interpolation)
	}
	switch o.Extrapolation {
	case ExtrapolationFlat, ExtrapolationLinear:
	default:
		return fmt.Errorf("unknown extrapolation policy %q", o.Extrapolation)
	}
	return nil
}

// probabilities returns n points evenly spanning [0.01, 0.99].
func probabilities(n int) []float64 {
	lo, hi := 0.01, 0.99
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
