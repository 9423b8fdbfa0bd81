// Package managers wires configured backends into running components.
package managers

import (
	"context"
	"errors"
	"fmt"

	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/internal/storage"
	"github.com/climtools/qqmap/internal/storage/netcdf"
	"github.com/climtools/qqmap/internal/storage/timescaledb"
	"github.com/climtools/qqmap/pkg/config"
)

// SinkManager holds our active output sink backends
type SinkManager struct {
	Sinks []ManagedSink
}

// ManagedSink pairs a backend sink with the type name it was
// configured under, for logging and error reporting
type ManagedSink struct {
	Type string
	Sink storage.GridSink
}

// NewSinkManager creates a SinkManager object, populated with all configured sinks
func NewSinkManager(ctx context.Context, sinks []config.SinkData) (*SinkManager, error) {
	m := &SinkManager{}

	for _, sc := range sinks {
		if err := m.AddSink(ctx, sc); err != nil {
			m.Close()
			return nil, fmt.Errorf("could not add %s output sink: %w", sc.Type, err)
		}
	}

	return m, nil
}

// AddSink adds a new output sink of the configured type to our manager
func (m *SinkManager) AddSink(ctx context.Context, sc config.SinkData) error {
	switch sc.Type {
	case "netcdf":
		sink, err := netcdf.New(sc.NetCDF)
		if err != nil {
			return err
		}
		m.Sinks = append(m.Sinks, ManagedSink{Type: sc.Type, Sink: sink})
	case "timescaledb":
		sink, err := timescaledb.New(ctx, sc.TimescaleDB)
		if err != nil {
			return err
		}
		m.Sinks = append(m.Sinks, ManagedSink{Type: sc.Type, Sink: sink})
	default:
		return fmt.Errorf("unknown sink type %q", sc.Type)
	}

	return nil
}

// StoreGrid fans a corrected grid out to every configured sink. All
// sinks are attempted; failures are combined into the returned error.
func (m *SinkManager) StoreGrid(ctx context.Context, job string, g *grid.Grid) error {
	var errs []error
	for _, ms := range m.Sinks {
		if err := ms.Sink.StoreGrid(ctx, job, g); err != nil {
			log.Errorf("sink %s failed for job %s: %v", ms.Type, job, err)
			errs = append(errs, fmt.Errorf("%s: %w", ms.Type, err))
		}
	}
	return errors.Join(errs...)
}

// Close shuts down all managed sinks
func (m *SinkManager) Close() error {
	var errs []error
	for _, ms := range m.Sinks {
		if err := ms.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ms.Type, err))
		}
	}
	return errors.Join(errs...)
}
