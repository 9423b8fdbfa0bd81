package qq

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/climtools/qqmap/internal/calendar"
	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
)

// maxSampleRetries bounds aggregate-mode resampling when the first sampled
// cell keeps coming up missing.
const maxSampleRetries = 100

// TransferFunction holds one correction curve per day-of-year together
// with everything needed to apply it later: the method, the window it was
// built with, the interpolation policy and whether input series were
// detrended first. Built once, immutable afterwards.
type TransferFunction struct {
	Method        Method    `msgpack:"method"`
	Detrended     bool      `msgpack:"detrended"`
	DetrendDegree int       `msgpack:"detrend_degree"`
	Window        int       `msgpack:"window"`
	Interpolation string    `msgpack:"interpolation"`
	Extrapolation string    `msgpack:"extrapolation"`
	Probabilities []float64 `msgpack:"probabilities"`
	Days          []*Curve  `msgpack:"days"` // indexed by day-of-year, slot 0 unused
}

// CurveFor returns the curve for a day-of-year, or nil when that day has
// no coverage.
func (tf *TransferFunction) CurveFor(day int) *Curve {
	if day < 1 || day >= len(tf.Days) {
		return nil
	}
	return tf.Days[day]
}

// CoveredDays counts days-of-year with a built curve.
func (tf *TransferFunction) CoveredDays() int {
	n := 0
	for _, c := range tf.Days {
		if c != nil {
			n++
		}
	}
	return n
}

// CorrectDay maps raw values through the curve for one day-of-year.
// Missing values pass through as NaN. Detrending and window gating need
// whole-series context and do not take part here; the day must have a
// curve.
func (tf *TransferFunction) CorrectDay(day int, values []float64) ([]float64, error) {
	if err := validateTransfer(tf); err != nil {
		return nil, err
	}
	if day < 1 || day > 365 {
		return nil, fmt.Errorf("day-of-year %d out of range [1, 365]", day)
	}
	curve := tf.CurveFor(day)
	if curve == nil {
		return nil, fmt.Errorf("no curve for day-of-year %d", day)
	}

	ip := &LinearInterpolator{Extrapolation: tf.Extrapolation}
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = curve.correct(v, tf.Method, ip)
	}
	return out, nil
}

// Fit builds a spatially pooled transfer function from observation and
// reference grids. Cells are drawn without replacement along each spatial
// axis according to opts.Partition, and their windowed samples pooled per
// day-of-year. rnd seeds the cell sampling; a nil rnd uses the clock.
func Fit(obs, ref *grid.Grid, opts Options, rnd *rand.Rand, logger *zap.SugaredLogger) (*TransferFunction, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.GetSugaredLogger()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if !obs.SameExtent(ref) {
		return nil, fmt.Errorf("%w: observation %dx%d, reference %dx%d",
			ErrShapeMismatch, obs.Nx(), obs.Ny(), ref.Nx(), ref.Ny())
	}

	daysObs, keepObs := calendar.NormalizeAxis(obs.Times)
	daysRef, keepRef := calendar.NormalizeAxis(ref.Times)
	if len(keepObs) == 0 || len(keepRef) == 0 {
		return nil, fmt.Errorf("fit: no usable timestamps after calendar normalization")
	}

	xsel, ysel, err := sampleCells(ref, keepRef, opts.Partition, rnd)
	if err != nil {
		return nil, err
	}

	// Pull the sampled cell series onto the normalized axes, detrending
	// each cell independently when requested. Cells that cannot be fitted
	// drop out of the pool.
	var obsSeries, refSeries [][]float64
	for _, xi := range xsel {
		for _, yi := range ysel {
			ov := filterByIndex(obs.Series(xi, yi), keepObs)
			rv := filterByIndex(ref.Series(xi, yi), keepRef)
			if opts.Detrend {
				var errO, errR error
				ov, _, errO = detrendSeries(ov, opts.DetrendDegree)
				rv, _, errR = detrendSeries(rv, opts.DetrendDegree)
				if errO != nil || errR != nil {
					logger.Debugw("skipping cell in pooled fit",
						"x", xi, "y", yi, "obs_err", errO, "ref_err", errR)
					continue
				}
			}
			obsSeries = append(obsSeries, ov)
			refSeries = append(refSeries, rv)
		}
	}
	if len(obsSeries) == 0 {
		return nil, fmt.Errorf("fit: no cell survived detrending")
	}

	lo, hi := dayCoverage(daysRef, opts.Window, logger)

	tf := &TransferFunction{
		Method:        opts.Method,
		Detrended:     opts.Detrend,
		DetrendDegree: opts.DetrendDegree,
		Window:        opts.Window,
		Interpolation: opts.Interpolation,
		Extrapolation: opts.Extrapolation,
		Probabilities: probabilities(opts.RankN),
		Days:          make([]*Curve, 366),
	}
	if lo > hi {
		return tf, nil
	}

	idxObs := windowIndex(daysObs, opts.Window)
	idxRef := windowIndex(daysRef, opts.Window)

	runDays(lo, hi, opts.Workers, func(d int) {
		obsWin := gather(obsSeries, idxObs[d])
		refWin := gather(refSeries, idxRef[d])
		if missingFraction(obsWin) >= opts.ThresNaN || missingFraction(refWin) >= opts.ThresNaN {
			logger.Debugw("day exceeds missing-data threshold", "day", d)
			return
		}
		tf.Days[d] = buildCurve(obsWin, refWin, tf.Probabilities, opts.Method)
	})
	return tf, nil
}

// sampleCells draws the aggregate-mode cell subset: independent
// without-replacement draws along each axis, retried while the first
// sampled cell's first reference value is missing.
func sampleCells(ref *grid.Grid, keepRef []int, partition float64, rnd *rand.Rand) ([]int, []int, error) {
	nx, ny := ref.Nx(), ref.Ny()
	kx := sampleCount(nx, partition)
	ky := sampleCount(ny, partition)

	for try := 0; try < maxSampleRetries; try++ {
		xsel := rnd.Perm(nx)[:kx]
		ysel := rnd.Perm(ny)[:ky]
		first := ref.At(xsel[0], ysel[0], keepRef[0])
		if !math.IsNaN(first) {
			return xsel, ysel, nil
		}
	}
	return nil, nil, fmt.Errorf("%w after %d attempts", ErrNoValidCell, maxSampleRetries)
}

func sampleCount(n int, partition float64) int {
	k := int(math.Round(partition * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// dayCoverage reports the day-of-year range to build. A reference axis
// covering all 365 days builds everything; otherwise the range shrinks by
// the window radius at each end and the caller is warned.
func dayCoverage(days []int, w int, logger *zap.SugaredLogger) (int, int) {
	var present [366]bool
	count := 0
	dmin, dmax := 366, 0
	for _, d := range days {
		if !present[d] {
			present[d] = true
			count++
		}
		if d < dmin {
			dmin = d
		}
		if d > dmax {
			dmax = d
		}
	}
	if count == 365 {
		return 1, 365
	}
	lo, hi := dmin+w, dmax-w
	logger.Warnw("reference data does not span a full year, building partial coverage",
		"first_day", dmin, "last_day", dmax, "built_from", lo, "built_to", hi)
	return lo, hi
}

// filterByIndex copies values at the kept axis positions.
func filterByIndex(values []float64, keep []int) []float64 {
	out := make([]float64, len(keep))
	for j, i := range keep {
		out[j] = values[i]
	}
	return out
}

// gather pools the windowed samples of every cell series.
func gather(series [][]float64, idx []int) []float64 {
	out := make([]float64, 0, len(series)*len(idx))
	for _, s := range series {
		for _, i := range idx {
			out = append(out, s[i])
		}
	}
	return out
}
