package config

import (
	"fmt"

	"github.com/climtools/qqmap/internal/qq"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetJobs() ([]JobData, error)
	GetSinks() ([]SinkData, error)

	// Configuration management (for SQLite-specific operations)
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Jobs  []JobData  `json:"jobs"`
	Sinks []SinkData `json:"sinks,omitempty"`
}

// GridFileData names one NetCDF input: the file and the variable in it
type GridFileData struct {
	Path     string `json:"path"`
	Variable string `json:"variable,omitempty"`
}

// JobData holds one correction job: the three input grids plus the
// mapping options. Zero-valued option fields fall back to the engine
// defaults when converted with Options().
type JobData struct {
	Name          string       `json:"name"`
	Observed      GridFileData `json:"observed"`
	Reference     GridFileData `json:"reference"`
	Target        GridFileData `json:"target"`
	Method        string       `json:"method,omitempty"`
	Detrend       bool         `json:"detrend,omitempty"`
	DetrendDegree int          `json:"detrend_degree,omitempty"`
	Window        int          `json:"window,omitempty"`
	RankN         int          `json:"rankn,omitempty"`
	ThresNaN      *float64     `json:"thresnan,omitempty"`
	KeepOriginal  bool         `json:"keep_original,omitempty"`
	Interpolation string       `json:"interpolation,omitempty"`
	Extrapolation string       `json:"extrapolation,omitempty"`
	Partition     float64      `json:"partition,omitempty"`
	Seed          int64        `json:"seed,omitempty"`
	Workers       int          `json:"workers,omitempty"`
}

// SinkData holds the configuration for one output sink backend
type SinkData struct {
	Type        string           `json:"type,omitempty"`
	NetCDF      *NetCDFSinkData  `json:"netcdf,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

// Sink backend configuration structs
type NetCDFSinkData struct {
	Directory string `json:"directory"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// Options converts the job's option fields into engine options,
// filling defaults for anything the configuration left unset. ThresNaN
// is a pointer so that an explicit zero survives the conversion.
func (j *JobData) Options() qq.Options {
	o := qq.DefaultOptions()
	if j.Method != "" {
		o.Method = qq.Method(j.Method)
	}
	o.Detrend = j.Detrend
	if j.DetrendDegree != 0 {
		o.DetrendDegree = j.DetrendDegree
	}
	if j.Window != 0 {
		o.Window = j.Window
	}
	if j.RankN != 0 {
		o.RankN = j.RankN
	}
	if j.ThresNaN != nil {
		o.ThresNaN = *j.ThresNaN
	}
	o.KeepOriginal = j.KeepOriginal
	if j.Interpolation != "" {
		o.Interpolation = j.Interpolation
	}
	if j.Extrapolation != "" {
		o.Extrapolation = j.Extrapolation
	}
	if j.Partition != 0 {
		o.Partition = j.Partition
	}
	if j.Workers != 0 {
		o.Workers = j.Workers
	}
	return o
}

// ValidateConfig checks the structural parts of a loaded configuration:
// job names and input paths present and unique, sink sections matching
// their declared type. Numeric option ranges are left to the engine.
func ValidateConfig(c *ConfigData) error {
	if len(c.Jobs) == 0 {
		return fmt.Errorf("configuration contains no jobs")
	}
	seen := make(map[string]bool, len(c.Jobs))
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d has no name", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("duplicate job name %q", job.Name)
		}
		seen[job.Name] = true
		for _, in := range []struct {
			role string
			f    GridFileData
		}{
			{"observed", job.Observed},
			{"reference", job.Reference},
			{"target", job.Target},
		} {
			if in.f.Path == "" {
				return fmt.Errorf("job %q: %s input has no path", job.Name, in.role)
			}
		}
	}
	for i, sink := range c.Sinks {
		switch sink.Type {
		case "netcdf":
			if sink.NetCDF == nil || sink.NetCDF.Directory == "" {
				return fmt.Errorf("sink %d: netcdf sink needs a directory", i)
			}
		case "timescaledb":
			if sink.TimescaleDB == nil || sink.TimescaleDB.ConnectionString == "" {
				return fmt.Errorf("sink %d: timescaledb sink needs a connection string", i)
			}
		default:
			return fmt.Errorf("sink %d: unknown sink type %q", i, sink.Type)
		}
	}
	return nil
}
