package qq

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/climtools/qqmap/internal/calendar"
	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
)

// Apply corrects a target grid with a previously built transfer function.
// The method, window, detrending and interpolation policy all come from
// the transfer function itself; opts contributes only the missing-data
// threshold, the keep-original fallback and the worker count. The result
// is a new grid on the calendar-normalized target time axis.
func Apply(tf *TransferFunction, target *grid.Grid, opts Options, logger *zap.SugaredLogger) (*grid.Grid, error) {
	if err := validateTransfer(tf); err != nil {
		return nil, err
	}
	if opts.ThresNaN < 0 || opts.ThresNaN > 1 {
		return nil, fmt.Errorf("thresnan %v out of range [0,1]", opts.ThresNaN)
	}
	if logger == nil {
		logger = log.GetSugaredLogger()
	}

	days, keep := calendar.NormalizeAxis(target.Times)
	if len(keep) == 0 {
		return nil, fmt.Errorf("apply: no usable timestamps after calendar normalization")
	}

	out := grid.New(target.Name, target.Xs, target.Ys, filterTimes(target.Times, keep))
	out.Units = target.Units
	for k, v := range target.Attrs {
		out.Attrs[k] = v
	}

	idx := windowIndex(days, tf.Window)
	pos := dayPositions(days)
	ip := &LinearInterpolator{Extrapolation: tf.Extrapolation}

	runCells(target.Nx(), target.Ny(), opts.Workers, func(xi, yi int) {
		src := filterByIndex(target.Series(xi, yi), keep)
		out.SetSeries(xi, yi, applySeries(tf, src, &idx, &pos, opts, ip, logger, xi, yi))
	})
	return out, nil
}

// ApplySeries corrects a single cell's series against a transfer function.
// It returns the calendar-normalized timestamps alongside the corrected
// values.
func ApplySeries(tf *TransferFunction, times []time.Time, values []float64, opts Options, logger *zap.SugaredLogger) ([]time.Time, []float64, error) {
	if err := validateTransfer(tf); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = log.GetSugaredLogger()
	}
	outTimes, src, days, err := calendar.Normalize(times, values)
	if err != nil {
		return nil, nil, err
	}
	if len(outTimes) == 0 {
		return nil, nil, fmt.Errorf("apply: no usable timestamps after calendar normalization")
	}
	idx := windowIndex(days, tf.Window)
	pos := dayPositions(days)
	ip := &LinearInterpolator{Extrapolation: tf.Extrapolation}
	return outTimes, applySeries(tf, src, &idx, &pos, opts, ip, logger, 0, 0), nil
}

// applySeries corrects one cell. src is on the normalized axis; idx and
// pos were built from the same day-of-year series. Output positions not
// covered by a usable curve stay NaN, or fall back to the original values
// under keep-original.
func applySeries(tf *TransferFunction, src []float64, idx, pos *[366][]int, opts Options, ip Interpolator, logger *zap.SugaredLogger, xi, yi int) []float64 {
	series := src
	var trend []float64
	if tf.Detrended {
		resid, tr, err := detrendSeries(src, tf.DetrendDegree)
		if err != nil {
			logger.Debugw("cell cannot be detrended", "x", xi, "y", yi, "error", err)
			return fallbackSeries(src, opts.KeepOriginal)
		}
		series, trend = resid, tr
	}

	out := make([]float64, len(src))
	for i := range out {
		out[i] = math.NaN()
	}

	for d := 1; d <= 365; d++ {
		positions := pos[d]
		if len(positions) == 0 {
			continue
		}
		curve := tf.CurveFor(d)
		win := filterByIndex(series, idx[d])
		if curve == nil || missingFraction(win) >= opts.ThresNaN {
			if opts.KeepOriginal {
				for _, i := range positions {
					out[i] = src[i]
				}
			}
			continue
		}
		for _, i := range positions {
			v := series[i]
			if math.IsNaN(v) {
				continue
			}
			corrected := curve.correct(v, tf.Method, ip)
			if trend != nil {
				corrected += trend[i]
			}
			out[i] = corrected
		}
	}
	return out
}

// fallbackSeries is the whole-cell failure output: originals under
// keep-original, NaN otherwise.
func fallbackSeries(src []float64, keepOriginal bool) []float64 {
	out := make([]float64, len(src))
	if keepOriginal {
		copy(out, src)
		return out
	}
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func validateTransfer(tf *TransferFunction) error {
	if tf == nil {
		return fmt.Errorf("nil transfer function")
	}
	switch tf.Method {
	case Additive, Multiplicative:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, tf.Method)
	}
	if tf.Window < 1 {
		return fmt.Errorf("transfer function window %d out of range", tf.Window)
	}
	if len(tf.Days) != 366 {
		return fmt.Errorf("transfer function has %d day slots, want 366", len(tf.Days))
	}
	return nil
}
