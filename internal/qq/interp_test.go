package qq

import (
	"math"
	"testing"
)

func TestLinearInterpolate(t *testing.T) {
	li := &LinearInterpolator{Extrapolation: ExtrapolationFlat}
	xs := []float64{0, 1, 2, 4}
	ys := []float64{0, 10, 20, 40}

	tests := []struct {
		x    float64
		want float64
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.75, 17.5},
		{3, 30},
		{4, 40},
	}
	for _, tt := range tests {
		if got := li.Interpolate(xs, ys, tt.x); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Interpolate(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestFlatExtrapolation(t *testing.T) {
	li := &LinearInterpolator{Extrapolation: ExtrapolationFlat}
	xs := []float64{1, 2, 3}
	ys := []float64{-5, 0, 5}

	if got := li.Interpolate(xs, ys, -10); got != -5 {
		t.Errorf("below range = %v, want -5", got)
	}
	if got := li.Interpolate(xs, ys, 99); got != 5 {
		t.Errorf("above range = %v, want 5", got)
	}
}

func TestLinearExtrapolation(t *testing.T) {
	li := &LinearInterpolator{Extrapolation: ExtrapolationLinear}
	xs := []float64{1, 2, 3}
	ys := []float64{10, 20, 30}

	if got := li.Interpolate(xs, ys, 0); math.Abs(got-0) > 1e-12 {
		t.Errorf("below range = %v, want 0", got)
	}
	if got := li.Interpolate(xs, ys, 5); math.Abs(got-50) > 1e-12 {
		t.Errorf("above range = %v, want 50", got)
	}
}

func TestInterpolateDuplicateKnots(t *testing.T) {
	li := &LinearInterpolator{Extrapolation: ExtrapolationFlat}

	// A flat reference distribution collapses every knot to the same x.
	xs := []float64{10, 10, 10}
	ys := []float64{-5, -5, -5}
	if got := li.Interpolate(xs, ys, 10); got != -5 {
		t.Errorf("at collapsed knot = %v, want -5", got)
	}
	if got := li.Interpolate(xs, ys, 15); got != -5 {
		t.Errorf("beyond collapsed knot = %v, want -5", got)
	}
	if got := li.Interpolate(xs, ys, 2); got != -5 {
		t.Errorf("before collapsed knot = %v, want -5", got)
	}

	// Partially duplicated knots act as a step at the duplicate.
	xs = []float64{0, 1, 1, 2}
	ys = []float64{0, 5, 7, 9}
	if got := li.Interpolate(xs, ys, 1); got != 7 {
		t.Errorf("at duplicate = %v, want rightmost value 7", got)
	}
	if got := li.Interpolate(xs, ys, 1.5); math.Abs(got-8) > 1e-12 {
		t.Errorf("past duplicate = %v, want 8", got)
	}
}

func TestLinearExtrapolationDegenerateEdge(t *testing.T) {
	li := &LinearInterpolator{Extrapolation: ExtrapolationLinear}

	// All knots equal: no slope to extend, fall back to the edge value.
	xs := []float64{3, 3, 3}
	ys := []float64{1, 1, 1}
	if got := li.Interpolate(xs, ys, 100); got != 1 {
		t.Errorf("degenerate above = %v, want 1", got)
	}
	if got := li.Interpolate(xs, ys, -100); got != 1 {
		t.Errorf("degenerate below = %v, want 1", got)
	}
}

func TestInterpolateEmptyAndSingle(t *testing.T) {
	li := &LinearInterpolator{Extrapolation: ExtrapolationFlat}

	if got := li.Interpolate(nil, nil, 1); !math.IsNaN(got) {
		t.Errorf("empty knots = %v, want NaN", got)
	}
	if got := li.Interpolate([]float64{2}, []float64{7}, 99); got != 7 {
		t.Errorf("single knot = %v, want 7", got)
	}
}
