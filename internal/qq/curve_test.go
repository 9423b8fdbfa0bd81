package qq

import (
	"math"
	"testing"
)

func constants(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBuildCurveIdenticalInputs(t *testing.T) {
	// Identical observation and reference quantiles make a null correction.
	probs := probabilities(50)
	sample := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9}

	add := buildCurve(sample, sample, probs, Additive)
	for i, y := range add.Y {
		if y != 0 {
			t.Fatalf("additive curve[%d] = %v, want 0", i, y)
		}
	}

	mult := buildCurve(sample, sample, probs, Multiplicative)
	for i, y := range mult.Y {
		if math.Abs(y-1) > 1e-12 {
			t.Fatalf("multiplicative curve[%d] = %v, want 1", i, y)
		}
	}
}

func TestBuildCurveAdditiveShift(t *testing.T) {
	probs := probabilities(10)
	ref := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	obs := make([]float64, len(ref))
	for i, v := range ref {
		obs[i] = v + 2.5
	}

	c := buildCurve(obs, ref, probs, Additive)
	for i, y := range c.Y {
		if math.Abs(y-2.5) > 1e-9 {
			t.Fatalf("curve[%d] = %v, want 2.5", i, y)
		}
	}
	// Keys are the reference quantiles, so they must be ordered.
	for i := 1; i < len(c.X); i++ {
		if c.X[i] < c.X[i-1] {
			t.Fatal("curve keys out of order")
		}
	}
}

func TestBuildCurveMultiplicativeFloor(t *testing.T) {
	probs := probabilities(5)
	obs := []float64{-4, -2, -1, -3, -5}
	ref := []float64{1, 2, 3, 4, 5}

	c := buildCurve(obs, ref, probs, Multiplicative)
	for i, y := range c.Y {
		if y != 0 {
			t.Fatalf("negative ratio not floored: curve[%d] = %v", i, y)
		}
	}
}

func TestBuildCurveIgnoresMissing(t *testing.T) {
	probs := probabilities(5)
	obs := []float64{10, math.NaN(), 10, 10, math.NaN(), 10}
	ref := []float64{5, 5, math.NaN(), 5, 5, 5}

	c := buildCurve(obs, ref, probs, Additive)
	for i, y := range c.Y {
		if math.Abs(y-5) > 1e-12 {
			t.Fatalf("curve[%d] = %v, want 5", i, y)
		}
	}
}

func TestBuildCurveAllMissing(t *testing.T) {
	probs := probabilities(5)
	missing := []float64{math.NaN(), math.NaN()}
	if c := buildCurve(missing, constants(1, 5), probs, Additive); c != nil {
		t.Fatal("expected nil curve for all-missing observations")
	}
}

func TestMissingFraction(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 1},
		{"none missing", []float64{1, 2, 3}, 0},
		{"half missing", []float64{1, math.NaN(), 2, math.NaN()}, 0.5},
		{"all missing", []float64{math.NaN()}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := missingFraction(tt.values); got != tt.want {
				t.Errorf("missingFraction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProbabilities(t *testing.T) {
	p := probabilities(50)
	if len(p) != 50 {
		t.Fatalf("len = %d, want 50", len(p))
	}
	if p[0] != 0.01 || p[49] != 0.99 {
		t.Errorf("span = [%v, %v], want [0.01, 0.99]", p[0], p[49])
	}
	for i := 1; i < len(p); i++ {
		if p[i] <= p[i-1] {
			t.Fatal("probabilities not strictly increasing")
		}
	}
}
