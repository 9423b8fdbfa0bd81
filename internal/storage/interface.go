// Package storage defines interfaces and implementations for corrected-grid output sinks.
package storage

import (
	"context"

	"github.com/climtools/qqmap/internal/grid"
)

// GridSink is an interface that provides a few standardized methods
// for various output sink backends
type GridSink interface {
	// StoreGrid persists one corrected grid under the given job name
	StoreGrid(ctx context.Context, job string, g *grid.Grid) error

	// Close releases backend resources
	Close() error
}
