// Package grid holds gridded climate time series in memory as dense
// (x, y, time) blocks with their coordinate axes.
package grid

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// Grid is one variable's dense (x, y, time) block plus its axes. Missing
// values are represented as NaN regardless of the on-disk convention.
type Grid struct {
	Name  string
	Units string
	Xs    []float64
	Ys    []float64
	Times []time.Time
	Data  *sparse.DenseArray
	Attrs map[string]string
}

// New allocates a grid of the given axes with all values set to NaN.
func New(name string, xs, ys []float64, times []time.Time) *Grid {
	g := &Grid{
		Name:  name,
		Xs:    xs,
		Ys:    ys,
		Times: times,
		Data:  sparse.ZerosDense(len(xs), len(ys), len(times)),
		Attrs: make(map[string]string),
	}
	g.Fill(math.NaN())
	return g
}

// Nx returns the size of the x axis.
func (g *Grid) Nx() int { return len(g.Xs) }

// Ny returns the size of the y axis.
func (g *Grid) Ny() int { return len(g.Ys) }

// Nt returns the size of the time axis.
func (g *Grid) Nt() int { return len(g.Times) }

// At returns the value at (xi, yi, ti).
func (g *Grid) At(xi, yi, ti int) float64 {
	return g.Data.Get(xi, yi, ti)
}

// Set stores a value at (xi, yi, ti).
func (g *Grid) Set(v float64, xi, yi, ti int) {
	g.Data.Set(v, xi, yi, ti)
}

// Series copies one cell's full time series. Time is the fastest-varying
// index, so the copy is a single contiguous read.
func (g *Grid) Series(xi, yi int) []float64 {
	nt := g.Nt()
	off := (xi*g.Ny() + yi) * nt
	out := make([]float64, nt)
	copy(out, g.Data.Elements[off:off+nt])
	return out
}

// SetSeries overwrites one cell's full time series.
func (g *Grid) SetSeries(xi, yi int, values []float64) {
	nt := g.Nt()
	off := (xi*g.Ny() + yi) * nt
	copy(g.Data.Elements[off:off+nt], values[:nt])
}

// Fill sets every element to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Data.Elements {
		g.Data.Elements[i] = v
	}
}

// SameExtent reports whether two grids share spatial dimensions.
func (g *Grid) SameExtent(o *Grid) bool {
	return g.Nx() == o.Nx() && g.Ny() == o.Ny()
}

// CheckShape verifies that the data block matches the declared axes.
func (g *Grid) CheckShape() error {
	want := g.Nx() * g.Ny() * g.Nt()
	if len(g.Data.Elements) != want {
		return fmt.Errorf("grid %s: %d elements for %dx%dx%d axes",
			g.Name, len(g.Data.Elements), g.Nx(), g.Ny(), g.Nt())
	}
	return nil
}

// MissingFraction returns the NaN fraction of one cell's series.
func (g *Grid) MissingFraction(xi, yi int) float64 {
	nt := g.Nt()
	if nt == 0 {
		return 0
	}
	off := (xi*g.Ny() + yi) * nt
	miss := 0
	for _, v := range g.Data.Elements[off : off+nt] {
		if math.IsNaN(v) {
			miss++
		}
	}
	return float64(miss) / float64(nt)
}
