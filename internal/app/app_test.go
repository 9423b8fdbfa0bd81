package app

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/pkg/config"
	"go.uber.org/zap"
)

// staticProvider serves a fixed configuration.
type staticProvider struct {
	cfg *config.ConfigData
}

func (p *staticProvider) LoadConfig() (*config.ConfigData, error) { return p.cfg, nil }
func (p *staticProvider) GetJobs() ([]config.JobData, error)      { return p.cfg.Jobs, nil }
func (p *staticProvider) GetSinks() ([]config.SinkData, error)    { return p.cfg.Sinks, nil }
func (p *staticProvider) IsReadOnly() bool                        { return true }
func (p *staticProvider) Close() error                            { return nil }

// writeConstantGrid stores a 2x1 grid holding value on every day of 2001.
func writeConstantGrid(t *testing.T, path string, value float64) {
	t.Helper()
	times := make([]time.Time, 365)
	start := time.Date(2001, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * 24 * time.Hour)
	}
	g := grid.New("pr", []float64{0, 1}, []float64{0}, times)
	g.Units = "mm/day"
	g.Fill(value)
	if err := grid.WriteFile(path, g); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func batchConfig(dir, outDir string, job config.JobData) *config.ConfigData {
	job.Observed = config.GridFileData{Path: filepath.Join(dir, "obs.nc"), Variable: "pr"}
	job.Reference = config.GridFileData{Path: filepath.Join(dir, "ref.nc"), Variable: "pr"}
	job.Target = config.GridFileData{Path: filepath.Join(dir, "target.nc"), Variable: "pr"}
	return &config.ConfigData{
		Jobs: []config.JobData{job},
		Sinks: []config.SinkData{
			{Type: "netcdf", NetCDF: &config.NetCDFSinkData{Directory: outDir}},
		},
	}
}

func TestRunCorrectsConfiguredJobs(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	writeConstantGrid(t, filepath.Join(dir, "obs.nc"), 10)
	writeConstantGrid(t, filepath.Join(dir, "ref.nc"), 15)
	writeConstantGrid(t, filepath.Join(dir, "target.nc"), 15)

	cfg := batchConfig(dir, outDir, config.JobData{Name: "precip"})
	a := New(&staticProvider{cfg}, zap.NewNop().Sugar())
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := grid.ReadFile(filepath.Join(outDir, "precip.nc"), "pr")
	if err != nil {
		t.Fatalf("reading corrected grid: %v", err)
	}
	if got.Nt() != 365 {
		t.Fatalf("corrected grid has %d timestamps, want 365", got.Nt())
	}
	for xi := 0; xi < got.Nx(); xi++ {
		for ti := 0; ti < got.Nt(); ti++ {
			if v := got.At(xi, 0, ti); math.Abs(v-10) > 1e-6 {
				t.Fatalf("corrected value at (%d,0,%d) = %v, want 10", xi, ti, v)
			}
		}
	}

	if got.Attrs["qqmap_run_id"] == "" {
		t.Error("missing qqmap_run_id attribute")
	}
	if got.Attrs["qqmap_version"] == "" {
		t.Error("missing qqmap_version attribute")
	}
	if got.Attrs["qqmap_job"] != "precip" {
		t.Errorf("qqmap_job = %q, want precip", got.Attrs["qqmap_job"])
	}
	if !strings.Contains(got.Attrs["history"], "quantile mapping") {
		t.Errorf("history = %q", got.Attrs["history"])
	}
}

func TestRunPooledPartitionJob(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	writeConstantGrid(t, filepath.Join(dir, "obs.nc"), 10)
	writeConstantGrid(t, filepath.Join(dir, "ref.nc"), 15)
	writeConstantGrid(t, filepath.Join(dir, "target.nc"), 15)

	cfg := batchConfig(dir, outDir, config.JobData{Name: "pooled", Partition: 0.5, Seed: 42})
	a := New(&staticProvider{cfg}, zap.NewNop().Sugar())
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := grid.ReadFile(filepath.Join(outDir, "pooled.nc"), "pr")
	if err != nil {
		t.Fatalf("reading corrected grid: %v", err)
	}
	for ti := 0; ti < got.Nt(); ti++ {
		if v := got.At(0, 0, ti); math.Abs(v-10) > 1e-6 {
			t.Fatalf("corrected value at day %d = %v, want 10", ti, v)
		}
	}
}

func TestRunReportsInvalidConfig(t *testing.T) {
	a := New(&staticProvider{&config.ConfigData{}}, zap.NewNop().Sugar())
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error for configuration without jobs")
	}
}

func TestRunContinuesPastFailingJob(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	writeConstantGrid(t, filepath.Join(dir, "obs.nc"), 10)
	writeConstantGrid(t, filepath.Join(dir, "ref.nc"), 15)
	writeConstantGrid(t, filepath.Join(dir, "target.nc"), 15)

	cfg := batchConfig(dir, outDir, config.JobData{Name: "good"})
	broken := cfg.Jobs[0]
	broken.Name = "broken"
	broken.Observed.Path = filepath.Join(dir, "missing.nc")
	cfg.Jobs = append([]config.JobData{broken}, cfg.Jobs...)

	a := New(&staticProvider{cfg}, zap.NewNop().Sugar())
	err := a.Run(context.Background())
	if err == nil {
		t.Fatal("expected error from broken job")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not name the failing job", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "good.nc")); err != nil {
		t.Errorf("surviving job output missing: %v", err)
	}
}

func TestStampProvenancePrependsHistory(t *testing.T) {
	g := grid.New("pr", []float64{0}, []float64{0}, []time.Time{time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)})
	g.Attrs["history"] = "2020-01-01T00:00:00Z: created by model"

	job := config.JobData{Name: "j", Target: config.GridFileData{Path: "t.nc"}, Observed: config.GridFileData{Path: "o.nc"}}
	stampProvenance(g, job, job.Options(), "run-1")

	lines := strings.Split(g.Attrs["history"], "\n")
	if len(lines) != 2 {
		t.Fatalf("history has %d lines, want 2: %q", len(lines), g.Attrs["history"])
	}
	if !strings.Contains(lines[0], "qqmap") {
		t.Errorf("first history line = %q", lines[0])
	}
	if lines[1] != "2020-01-01T00:00:00Z: created by model" {
		t.Errorf("second history line = %q", lines[1])
	}
	if g.Attrs["qqmap_run_id"] != "run-1" {
		t.Errorf("qqmap_run_id = %q", g.Attrs["qqmap_run_id"])
	}
}
