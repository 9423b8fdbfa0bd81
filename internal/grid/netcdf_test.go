package grid

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	times := make([]time.Time, 5)
	for i := range times {
		times[i] = time.Date(1995, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	g := New("tas", []float64{10, 20, 30}, []float64{-5, 5}, times)
	g.Units = "K"
	for xi := 0; xi < 3; xi++ {
		for yi := 0; yi < 2; yi++ {
			for ti := 0; ti < 5; ti++ {
				g.Set(float64(100*xi+10*yi+ti), xi, yi, ti)
			}
		}
	}
	g.Set(math.NaN(), 1, 1, 2)

	path := filepath.Join(t.TempDir(), "roundtrip.nc")
	if err := WriteFile(path, g); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path, "tas")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Nx() != 3 || got.Ny() != 2 || got.Nt() != 5 {
		t.Fatalf("axes = %d/%d/%d, want 3/2/5", got.Nx(), got.Ny(), got.Nt())
	}
	if got.Units != "K" {
		t.Errorf("units = %q, want K", got.Units)
	}
	for i, want := range g.Xs {
		if got.Xs[i] != want {
			t.Errorf("x[%d] = %v, want %v", i, got.Xs[i], want)
		}
	}
	for i, want := range g.Times {
		if !got.Times[i].Equal(want) {
			t.Errorf("time[%d] = %v, want %v", i, got.Times[i], want)
		}
	}
	for xi := 0; xi < 3; xi++ {
		for yi := 0; yi < 2; yi++ {
			for ti := 0; ti < 5; ti++ {
				want := g.At(xi, yi, ti)
				val := got.At(xi, yi, ti)
				if math.IsNaN(want) {
					if !math.IsNaN(val) {
						t.Errorf("At(%d,%d,%d) = %v, want NaN", xi, yi, ti, val)
					}
					continue
				}
				if val != want {
					t.Errorf("At(%d,%d,%d) = %v, want %v", xi, yi, ti, val)
				}
			}
		}
	}
}

func TestReadFileAutoDetect(t *testing.T) {
	times := []time.Time{time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := New("pr", []float64{0, 1}, []float64{0}, times)
	g.SetSeries(0, 0, []float64{3})
	g.SetSeries(1, 0, []float64{4})

	path := filepath.Join(t.TempDir(), "auto.nc")
	if err := WriteFile(path, g); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path, "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Name != "pr" {
		t.Errorf("detected variable %q, want pr", got.Name)
	}
	if got.At(1, 0, 0) != 4 {
		t.Errorf("At(1,0,0) = %v, want 4", got.At(1, 0, 0))
	}
}

func TestReadFileMissingVariable(t *testing.T) {
	times := []time.Time{time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := New("pr", []float64{0}, []float64{0}, times)

	path := filepath.Join(t.TempDir(), "missing.nc")
	if err := WriteFile(path, g); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadFile(path, "nosuchvar"); err == nil {
		t.Fatal("expected error for unknown variable")
	}
}
