package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML file-based configuration
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	data, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", y.filename, err)
	}

	var yamlConfig ConfigYAML
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config := &ConfigData{
		Jobs:  make([]JobData, len(yamlConfig.Jobs)),
		Sinks: make([]SinkData, len(yamlConfig.Sinks)),
	}

	for i, job := range yamlConfig.Jobs {
		config.Jobs[i] = JobData{
			Name:          job.Name,
			Observed:      GridFileData{Path: job.Observed.Path, Variable: job.Observed.Variable},
			Reference:     GridFileData{Path: job.Reference.Path, Variable: job.Reference.Variable},
			Target:        GridFileData{Path: job.Target.Path, Variable: job.Target.Variable},
			Method:        job.Method,
			Detrend:       job.Detrend,
			DetrendDegree: job.DetrendDegree,
			Window:        job.Window,
			RankN:         job.RankN,
			ThresNaN:      job.ThresNaN,
			KeepOriginal:  job.KeepOriginal,
			Interpolation: job.Interpolation,
			Extrapolation: job.Extrapolation,
			Partition:     job.Partition,
			Seed:          job.Seed,
			Workers:       job.Workers,
		}
	}

	for i, sink := range yamlConfig.Sinks {
		config.Sinks[i] = SinkData{
			Type: sink.Type,
		}

		if sink.NetCDF != nil {
			config.Sinks[i].NetCDF = &NetCDFSinkData{
				Directory: sink.NetCDF.Directory,
			}
		}

		if sink.TimescaleDB != nil {
			config.Sinks[i].TimescaleDB = &TimescaleDBData{
				ConnectionString: sink.TimescaleDB.ConnectionString,
			}
		}
	}

	y.config = config
	return config, nil
}

// GetJobs returns correction job configurations
func (y *YAMLProvider) GetJobs() ([]JobData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Jobs, nil
}

// GetSinks returns output sink configurations
func (y *YAMLProvider) GetSinks() ([]SinkData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return y.config.Sinks, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the file format
type ConfigYAML struct {
	Jobs  []JobYAML  `yaml:"jobs"`
	Sinks []SinkYAML `yaml:"sinks,omitempty"`
}

type GridFileYAML struct {
	Path     string `yaml:"path"`
	Variable string `yaml:"variable,omitempty"`
}

type JobYAML struct {
	Name          string       `yaml:"name"`
	Observed      GridFileYAML `yaml:"observed"`
	Reference     GridFileYAML `yaml:"reference"`
	Target        GridFileYAML `yaml:"target"`
	Method        string       `yaml:"method,omitempty"`
	Detrend       bool         `yaml:"detrend,omitempty"`
	DetrendDegree int          `yaml:"detrend-degree,omitempty"`
	Window        int          `yaml:"window,omitempty"`
	RankN         int          `yaml:"rankn,omitempty"`
	ThresNaN      *float64     `yaml:"thresnan,omitempty"`
	KeepOriginal  bool         `yaml:"keep-original,omitempty"`
	Interpolation string       `yaml:"interpolation,omitempty"`
	Extrapolation string       `yaml:"extrapolation,omitempty"`
	Partition     float64      `yaml:"partition,omitempty"`
	Seed          int64        `yaml:"seed,omitempty"`
	Workers       int          `yaml:"workers,omitempty"`
}

type SinkYAML struct {
	Type        string           `yaml:"type,omitempty"`
	NetCDF      *NetCDFSinkYAML  `yaml:"netcdf,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type NetCDFSinkYAML struct {
	Directory string `yaml:"directory"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}
