package qq

import (
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/climtools/qqmap/internal/grid"
)

func dailyTimes(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// makeGrid builds a test grid whose cell values come from fn.
func makeGrid(name string, nx, ny int, times []time.Time, fn func(xi, yi, i int) float64) *grid.Grid {
	xs := make([]float64, nx)
	ys := make([]float64, ny)
	for i := range xs {
		xs[i] = float64(i)
	}
	for i := range ys {
		ys[i] = float64(i)
	}
	g := grid.New(name, xs, ys, times)
	for xi := 0; xi < nx; xi++ {
		for yi := 0; yi < ny; yi++ {
			series := make([]float64, len(times))
			for i := range series {
				series[i] = fn(xi, yi, i)
			}
			g.SetSeries(xi, yi, series)
		}
	}
	return g
}

func nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// twoYears is a 730-day axis over 1994 and 1995, both non-leap.
func twoYears() []time.Time {
	return dailyTimes(time.Date(1994, 1, 1, 0, 0, 0, 0, time.UTC), 730)
}

func TestCorrectConstantAdditive(t *testing.T) {
	times := twoYears()
	obs := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 10 })
	ref := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 15 })
	target := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 15 })

	out, err := Correct(obs, ref, target, DefaultOptions(), nop())
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if out.Nt() != 730 {
		t.Fatalf("output length = %d, want 730", out.Nt())
	}
	// The quantile curve sits flat at -5, so the constant 15 corrects to 10.
	for i, v := range out.Series(0, 0) {
		if math.Abs(v-10) > 1e-9 {
			t.Fatalf("corrected[%d] = %v, want 10", i, v)
		}
	}
}

func TestCorrectConstantMultiplicative(t *testing.T) {
	times := twoYears()
	obs := makeGrid("pr", 1, 1, times, func(_, _, _ int) float64 { return 20 })
	ref := makeGrid("pr", 1, 1, times, func(_, _, _ int) float64 { return 10 })
	target := makeGrid("pr", 1, 1, times, func(_, _, i int) float64 { return 5 + float64(i%10) })

	opts := DefaultOptions()
	opts.Method = Multiplicative

	out, err := Correct(obs, ref, target, opts, nop())
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	// The ratio curve sits flat at 2, so every target value doubles.
	src := target.Series(0, 0)
	for i, v := range out.Series(0, 0) {
		if math.Abs(v-2*src[i]) > 1e-9 {
			t.Fatalf("corrected[%d] = %v, want %v", i, v, 2*src[i])
		}
	}
}

func TestCorrectIdentityWhenObsEqualsRef(t *testing.T) {
	times := twoYears()
	vary := func(_, _ int, i int) float64 {
		return 12 + 8*math.Sin(2*math.Pi*float64(i)/365)
	}
	obs := makeGrid("tas", 2, 2, times, vary)
	ref := makeGrid("tas", 2, 2, times, vary)
	target := makeGrid("tas", 2, 2, times, func(xi, yi, i int) float64 {
		return vary(xi, yi, i) + 0.5
	})

	for _, method := range []Method{Additive, Multiplicative} {
		opts := DefaultOptions()
		opts.Method = method

		out, err := Correct(obs, ref, target, opts, nop())
		if err != nil {
			t.Fatalf("Correct(%s): %v", method, err)
		}
		src := target.Series(1, 1)
		for i, v := range out.Series(1, 1) {
			if math.Abs(v-src[i]) > 0.2 {
				t.Fatalf("%s: corrected[%d] = %v, want ~%v", method, i, v, src[i])
			}
		}
	}
}

func TestCorrectShapeMismatch(t *testing.T) {
	times := twoYears()
	obs := makeGrid("tas", 2, 2, times, func(_, _, _ int) float64 { return 1 })
	ref := makeGrid("tas", 3, 2, times, func(_, _, _ int) float64 { return 1 })
	target := makeGrid("tas", 2, 2, times, func(_, _, _ int) float64 { return 1 })

	_, err := Correct(obs, ref, target, DefaultOptions(), nop())
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestCorrectUnknownMethod(t *testing.T) {
	times := twoYears()
	g := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 1 })

	opts := DefaultOptions()
	opts.Method = "banana"

	_, err := Correct(g, g, g, opts, nop())
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("err = %v, want ErrUnknownMethod", err)
	}
}

func TestCorrectMissingGateMonotonic(t *testing.T) {
	times := twoYears()
	obs := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 10 })
	ref := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 10 })
	// Every third target value missing, so each window runs at about one
	// third missing.
	target := makeGrid("tas", 1, 1, times, func(_, _, i int) float64 {
		if i%3 == 0 {
			return math.NaN()
		}
		return 11
	})

	counts := make([]int, 0, 4)
	for _, thres := range []float64{0, 0.1, 0.5, 1} {
		opts := DefaultOptions()
		opts.ThresNaN = thres

		out, err := Correct(obs, ref, target, opts, nop())
		if err != nil {
			t.Fatalf("Correct(thres=%v): %v", thres, err)
		}
		n := 0
		for _, v := range out.Series(0, 0) {
			if !math.IsNaN(v) {
				n++
			}
		}
		counts = append(counts, n)
	}

	for i := 1; i < len(counts); i++ {
		if counts[i] < counts[i-1] {
			t.Fatalf("corrected count decreased as threshold grew: %v", counts)
		}
	}
	if counts[0] != 0 {
		t.Errorf("threshold 0 should gate everything, got %d corrected", counts[0])
	}
	if counts[len(counts)-1] == 0 {
		t.Error("threshold 1 should correct the non-missing values")
	}
}

func TestCorrectKeepOriginal(t *testing.T) {
	times := twoYears()
	obs := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 10 })
	ref := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 10 })
	target := makeGrid("tas", 1, 1, times, func(_, _, i int) float64 { return float64(i) })

	// Threshold zero gates every unit; keep-original falls back to the
	// uncorrected values instead of missing markers.
	opts := DefaultOptions()
	opts.ThresNaN = 0
	opts.KeepOriginal = true

	out, err := Correct(obs, ref, target, opts, nop())
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	src := target.Series(0, 0)
	for i, v := range out.Series(0, 0) {
		if v != src[i] {
			t.Fatalf("output[%d] = %v, want original %v", i, v, src[i])
		}
	}
}

func TestCorrectDetrendRoundTrip(t *testing.T) {
	times := twoYears()
	base := func(i int) float64 {
		return 10 + 5*math.Sin(2*math.Pi*float64(i)/365) + 0.01*float64(i)
	}
	obs := makeGrid("tas", 1, 1, times, func(_, _, i int) float64 { return base(i) })
	ref := makeGrid("tas", 1, 1, times, func(_, _, i int) float64 { return base(i) })
	target := makeGrid("tas", 1, 1, times, func(_, _, i int) float64 { return base(i) + 1 })

	opts := DefaultOptions()
	opts.Detrend = true

	out, err := Correct(obs, ref, target, opts, nop())
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	// Identical obs and ref leave residuals uncorrected; re-attaching the
	// trend must reproduce the target.
	src := target.Series(0, 0)
	for i, v := range out.Series(0, 0) {
		if math.Abs(v-src[i]) > 0.05 {
			t.Fatalf("corrected[%d] = %v, want ~%v", i, v, src[i])
		}
	}
}

func TestCorrectFailureContainedPerCell(t *testing.T) {
	times := twoYears()
	obs := makeGrid("tas", 2, 1, times, func(xi, _, _ int) float64 {
		if xi == 1 {
			return math.NaN()
		}
		return 10
	})
	ref := makeGrid("tas", 2, 1, times, func(_, _, _ int) float64 { return 15 })
	target := makeGrid("tas", 2, 1, times, func(_, _, _ int) float64 { return 15 })

	out, err := Correct(obs, ref, target, DefaultOptions(), nop())
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	// The healthy cell corrects normally.
	for i, v := range out.Series(0, 0) {
		if math.Abs(v-10) > 1e-9 {
			t.Fatalf("healthy cell corrected[%d] = %v, want 10", i, v)
		}
	}
	// The all-missing observation cell stays missing without aborting.
	for i, v := range out.Series(1, 0) {
		if !math.IsNaN(v) {
			t.Fatalf("failed cell output[%d] = %v, want NaN", i, v)
		}
	}
}
