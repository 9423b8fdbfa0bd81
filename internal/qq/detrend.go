package qq

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Trend is a fitted low-order polynomial over one cell's time index. The
// constant coefficient is forced to zero after fitting, so the trend
// describes departure from the series level rather than the level itself.
type Trend struct {
	Coeffs []float64 // Coeffs[j] multiplies x^j, x = 1..n
}

// FitTrend fits a least-squares polynomial of the given degree to the
// non-missing values of a series, with x running 1..len(values). It fails
// when fewer than degree+1 samples remain.
func FitTrend(values []float64, degree int) (*Trend, error) {
	var xs, ys []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		xs = append(xs, float64(i+1))
		ys = append(ys, v)
	}
	n := len(xs)
	if n < degree+1 {
		return nil, fmt.Errorf("detrend: %d usable samples for degree %d", n, degree)
	}

	// Build Vandermonde matrix for polynomial regression
	X := mat.NewDense(n, degree+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= degree; j++ {
			X.Set(i, j, math.Pow(xs[i], float64(j)))
		}
	}
	y := mat.NewVecDense(n, ys)

	var qr mat.QR
	qr.Factorize(X)

	coeffs := mat.NewVecDense(degree+1, nil)
	if err := qr.SolveVecTo(coeffs, false, y); err != nil {
		return nil, fmt.Errorf("detrend: solving polynomial regression: %w", err)
	}

	out := make([]float64, degree+1)
	for j := 1; j <= degree; j++ {
		out[j] = coeffs.AtVec(j)
	}
	return &Trend{Coeffs: out}, nil
}

// at evaluates the trend at time index x.
func (tr *Trend) at(x float64) float64 {
	sum := 0.0
	for j := len(tr.Coeffs) - 1; j >= 0; j-- {
		sum = sum*x + tr.Coeffs[j]
	}
	return sum
}

// Eval evaluates the trend at x = 1..n.
func (tr *Trend) Eval(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = tr.at(float64(i + 1))
	}
	return out
}

// detrendSeries subtracts the fitted trend from a copy of the series and
// returns both the residuals and the trend values. Missing entries stay
// missing.
func detrendSeries(values []float64, degree int) ([]float64, []float64, error) {
	tr, err := FitTrend(values, degree)
	if err != nil {
		return nil, nil, err
	}
	trend := tr.Eval(len(values))
	resid := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			resid[i] = v
			continue
		}
		resid[i] = v - trend[i]
	}
	return resid, trend, nil
}
