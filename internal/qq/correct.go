package qq

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/climtools/qqmap/internal/calendar"
	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
)

// Correct runs the single-pass correction: for every cell and day-of-year
// it derives the quantile curve from the observation and reference windows
// of that cell and immediately corrects the target values carrying that
// day. The result is a new grid on the calendar-normalized target axis;
// the inputs are never modified.
func Correct(obs, ref, target *grid.Grid, opts Options, logger *zap.SugaredLogger) (*grid.Grid, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.GetSugaredLogger()
	}
	if !obs.SameExtent(ref) || !obs.SameExtent(target) {
		return nil, fmt.Errorf("%w: observation %dx%d, reference %dx%d, target %dx%d",
			ErrShapeMismatch, obs.Nx(), obs.Ny(), ref.Nx(), ref.Ny(), target.Nx(), target.Ny())
	}

	daysObs, keepObs := calendar.NormalizeAxis(obs.Times)
	daysRef, keepRef := calendar.NormalizeAxis(ref.Times)
	daysTgt, keepTgt := calendar.NormalizeAxis(target.Times)
	if len(keepObs) == 0 || len(keepRef) == 0 || len(keepTgt) == 0 {
		return nil, fmt.Errorf("correct: no usable timestamps after calendar normalization")
	}

	out := grid.New(target.Name, target.Xs, target.Ys, filterTimes(target.Times, keepTgt))
	out.Units = target.Units
	for k, v := range target.Attrs {
		out.Attrs[k] = v
	}

	idxObs := windowIndex(daysObs, opts.Window)
	idxRef := windowIndex(daysRef, opts.Window)
	idxTgt := windowIndex(daysTgt, opts.Window)
	posTgt := dayPositions(daysTgt)
	probs := probabilities(opts.RankN)
	ip := newInterpolator(opts)

	runCells(target.Nx(), target.Ny(), opts.Workers, func(xi, yi int) {
		obsS := filterByIndex(obs.Series(xi, yi), keepObs)
		refS := filterByIndex(ref.Series(xi, yi), keepRef)
		src := filterByIndex(target.Series(xi, yi), keepTgt)
		out.SetSeries(xi, yi, correctCell(obsS, refS, src,
			&idxObs, &idxRef, &idxTgt, &posTgt, probs, opts, ip, logger, xi, yi))
	})
	return out, nil
}

// correctCell runs the per-day estimation loop for one cell.
func correctCell(obsS, refS, src []float64, idxObs, idxRef, idxTgt, posTgt *[366][]int, probs []float64, opts Options, ip Interpolator, logger *zap.SugaredLogger, xi, yi int) []float64 {
	tgtS := src
	var trend []float64
	if opts.Detrend {
		var errO, errR, errT error
		obsS, _, errO = detrendSeries(obsS, opts.DetrendDegree)
		refS, _, errR = detrendSeries(refS, opts.DetrendDegree)
		tgtS, trend, errT = detrendSeries(src, opts.DetrendDegree)
		if errO != nil || errR != nil || errT != nil {
			logger.Debugw("cell cannot be detrended",
				"x", xi, "y", yi, "obs_err", errO, "ref_err", errR, "target_err", errT)
			return fallbackSeries(src, opts.KeepOriginal)
		}
	}

	out := make([]float64, len(src))
	for i := range out {
		out[i] = math.NaN()
	}

	for d := 1; d <= 365; d++ {
		positions := posTgt[d]
		if len(positions) == 0 {
			continue
		}
		obsWin := filterByIndex(obsS, idxObs[d])
		refWin := filterByIndex(refS, idxRef[d])
		tgtWin := filterByIndex(tgtS, idxTgt[d])
		if missingFraction(obsWin) >= opts.ThresNaN ||
			missingFraction(refWin) >= opts.ThresNaN ||
			missingFraction(tgtWin) >= opts.ThresNaN {
			if opts.KeepOriginal {
				for _, i := range positions {
					out[i] = src[i]
				}
			}
			continue
		}
		curve := buildCurve(obsWin, refWin, probs, opts.Method)
		if curve == nil {
			if opts.KeepOriginal {
				for _, i := range positions {
					out[i] = src[i]
				}
			}
			continue
		}
		for _, i := range positions {
			v := tgtS[i]
			if math.IsNaN(v) {
				continue
			}
			corrected := curve.correct(v, opts.Method, ip)
			if trend != nil {
				corrected += trend[i]
			}
			out[i] = corrected
		}
	}
	return out
}
