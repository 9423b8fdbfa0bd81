package qq

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func TestFitCoversFullYear(t *testing.T) {
	times := twoYears()
	vary := func(_, _ int, i int) float64 {
		return 10 + 3*math.Sin(2*math.Pi*float64(i)/365)
	}
	obs := makeGrid("tas", 2, 2, times, vary)
	ref := makeGrid("tas", 2, 2, times, vary)

	tf, err := Fit(obs, ref, DefaultOptions(), rand.New(rand.NewSource(1)), nop())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if tf.CoveredDays() != 365 {
		t.Fatalf("covered days = %d, want 365", tf.CoveredDays())
	}
	if tf.Days[0] != nil {
		t.Error("day slot 0 must stay unused")
	}
	if tf.Method != Additive || tf.Window != 15 || len(tf.Probabilities) != 50 {
		t.Errorf("transfer metadata = %v/%v/%v, want additive/15/50",
			tf.Method, tf.Window, len(tf.Probabilities))
	}
}

func TestFitApplyRoundTrip(t *testing.T) {
	times := twoYears()
	refFn := func(_, _ int, i int) float64 {
		return 5 + 4*math.Sin(2*math.Pi*float64(i)/365) + math.Mod(float64(i)*0.37, 1)
	}
	ref := makeGrid("pr", 2, 2, times, refFn)
	obs := makeGrid("pr", 2, 2, times, func(xi, yi, i int) float64 {
		return refFn(xi, yi, i) + 5
	})

	tf, err := Fit(obs, ref, DefaultOptions(), rand.New(rand.NewSource(7)), nop())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Applying the function back to the reference reproduces the shifted
	// observation distribution.
	out, err := Apply(tf, ref, DefaultOptions(), nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for xi := 0; xi < 2; xi++ {
		for yi := 0; yi < 2; yi++ {
			want := obs.Series(xi, yi)
			for i, v := range out.Series(xi, yi) {
				if math.Abs(v-want[i]) > 1e-9 {
					t.Fatalf("cell (%d,%d) corrected[%d] = %v, want %v", xi, yi, i, v, want[i])
				}
			}
		}
	}
}

func TestFitPartialCoverage(t *testing.T) {
	// Reference covers only April through mid-July 1995 (days 91-190).
	refTimes := dailyTimes(time.Date(1995, 4, 1, 0, 0, 0, 0, time.UTC), 100)
	obsTimes := refTimes
	obs := makeGrid("tas", 1, 1, obsTimes, func(_, _, _ int) float64 { return 12 })
	ref := makeGrid("tas", 1, 1, refTimes, func(_, _, _ int) float64 { return 14 })

	tf, err := Fit(obs, ref, DefaultOptions(), rand.New(rand.NewSource(3)), nop())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	// Coverage shrinks by the window radius at both ends: 106..175.
	if got := tf.CoveredDays(); got != 70 {
		t.Errorf("covered days = %d, want 70", got)
	}
	if tf.CurveFor(105) != nil || tf.CurveFor(176) != nil {
		t.Error("days outside the trimmed range must stay empty")
	}
	if tf.CurveFor(106) == nil || tf.CurveFor(175) == nil {
		t.Error("days inside the trimmed range must be built")
	}
}

func TestFitShapeMismatch(t *testing.T) {
	times := twoYears()
	obs := makeGrid("tas", 2, 2, times, func(_, _, _ int) float64 { return 1 })
	ref := makeGrid("tas", 2, 3, times, func(_, _, _ int) float64 { return 1 })

	_, err := Fit(obs, ref, DefaultOptions(), rand.New(rand.NewSource(1)), nop())
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestFitUnknownMethod(t *testing.T) {
	times := twoYears()
	g := makeGrid("tas", 1, 1, times, func(_, _, _ int) float64 { return 1 })

	opts := DefaultOptions()
	opts.Method = "scaling"

	_, err := Fit(g, g, opts, rand.New(rand.NewSource(1)), nop())
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("err = %v, want ErrUnknownMethod", err)
	}
}

func TestFitNoValidCell(t *testing.T) {
	times := twoYears()
	obs := makeGrid("tas", 2, 2, times, func(_, _, _ int) float64 { return 1 })
	// Every cell's first value is missing, so sampling can never start.
	ref := makeGrid("tas", 2, 2, times, func(_, _, i int) float64 {
		if i == 0 {
			return math.NaN()
		}
		return 1
	})

	_, err := Fit(obs, ref, DefaultOptions(), rand.New(rand.NewSource(1)), nop())
	if !errors.Is(err, ErrNoValidCell) {
		t.Fatalf("err = %v, want ErrNoValidCell", err)
	}
}

func TestFitPartitionSubset(t *testing.T) {
	times := twoYears()
	vary := func(xi, yi, i int) float64 {
		return 10 + float64(xi) + float64(yi) + math.Sin(float64(i)/50)
	}
	obs := makeGrid("tas", 4, 4, times, vary)
	ref := makeGrid("tas", 4, 4, times, vary)

	opts := DefaultOptions()
	opts.Partition = 0.5

	tf, err := Fit(obs, ref, opts, rand.New(rand.NewSource(11)), nop())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if tf.CoveredDays() != 365 {
		t.Errorf("covered days = %d, want 365", tf.CoveredDays())
	}
	// Identical obs and ref pool to a null additive correction regardless
	// of which cells were sampled.
	c := tf.CurveFor(180)
	for i, y := range c.Y {
		if math.Abs(y) > 1e-9 {
			t.Fatalf("curve[%d] = %v, want 0", i, y)
		}
	}
}

func TestFitDetrendRoundTrip(t *testing.T) {
	times := twoYears()
	refFn := func(_, _ int, i int) float64 {
		return 8 + 2*math.Sin(2*math.Pi*float64(i)/365) + 0.02*float64(i)
	}
	ref := makeGrid("tas", 1, 1, times, refFn)
	obs := makeGrid("tas", 1, 1, times, func(xi, yi, i int) float64 {
		return refFn(xi, yi, i) + 5
	})

	opts := DefaultOptions()
	opts.Detrend = true

	tf, err := Fit(obs, ref, opts, rand.New(rand.NewSource(5)), nop())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !tf.Detrended || tf.DetrendDegree != 4 {
		t.Fatalf("detrend metadata = %v/%d, want true/4", tf.Detrended, tf.DetrendDegree)
	}

	out, err := Apply(tf, ref, opts, nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := obs.Series(0, 0)
	for i, v := range out.Series(0, 0) {
		if math.Abs(v-want[i]) > 1e-6 {
			t.Fatalf("corrected[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	times := twoYears()
	vary := func(_, _ int, i int) float64 { return 10 + math.Sin(float64(i)/20) }
	obs := makeGrid("tas", 1, 1, times, func(xi, yi, i int) float64 { return vary(xi, yi, i) + 2 })
	ref := makeGrid("tas", 1, 1, times, vary)

	tf, err := Fit(obs, ref, DefaultOptions(), rand.New(rand.NewSource(9)), nop())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tf.msgpack")
	if err := tf.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Method != tf.Method || loaded.Window != tf.Window ||
		loaded.Detrended != tf.Detrended || loaded.CoveredDays() != tf.CoveredDays() {
		t.Fatal("loaded transfer function metadata differs")
	}
	orig := tf.CurveFor(42)
	got := loaded.CurveFor(42)
	for i := range orig.Y {
		if math.Abs(got.Y[i]-orig.Y[i]) > 1e-12 || math.Abs(got.X[i]-orig.X[i]) > 1e-12 {
			t.Fatalf("curve knot %d differs after reload", i)
		}
	}

	// The reloaded function corrects identically.
	target := makeGrid("tas", 1, 1, times, vary)
	a, err := Apply(tf, target, DefaultOptions(), nop())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Apply(loaded, target, DefaultOptions(), nop())
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Series(0, 0) {
		av, bv := a.At(0, 0, i), b.At(0, 0, i)
		if math.IsNaN(av) != math.IsNaN(bv) || (!math.IsNaN(av) && av != bv) {
			t.Fatalf("outputs differ at %d: %v vs %v", i, av, bv)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.msgpack")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	tf := flatTransfer(Additive, -3)
	data, err := msgpack.Marshal(&transferFile{Version: 99, Function: tf})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "future.msgpack")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported file version")
	}
}

func TestCorrectDay(t *testing.T) {
	tf := flatTransfer(Additive, -3)

	got, err := tf.CorrectDay(10, []float64{1, math.NaN(), 5})
	if err != nil {
		t.Fatalf("CorrectDay: %v", err)
	}
	want := []float64{-2, math.NaN(), 2}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("value %d = %v, want NaN", i, got[i])
			}
			continue
		}
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("value %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCorrectDayErrors(t *testing.T) {
	tf := flatTransfer(Additive, -3)
	for d := 1; d <= 365; d++ {
		if d != 10 {
			tf.Days[d] = nil
		}
	}

	if _, err := tf.CorrectDay(0, []float64{1}); err == nil {
		t.Error("expected error for day 0")
	}
	if _, err := tf.CorrectDay(366, []float64{1}); err == nil {
		t.Error("expected error for day 366")
	}
	if _, err := tf.CorrectDay(11, []float64{1}); err == nil {
		t.Error("expected error for uncovered day")
	}
	if _, err := tf.CorrectDay(10, []float64{1}); err != nil {
		t.Errorf("covered day should correct, got %v", err)
	}

	var nilTF *TransferFunction
	if _, err := nilTF.CorrectDay(10, []float64{1}); err == nil {
		t.Error("expected error for nil transfer function")
	}
}
