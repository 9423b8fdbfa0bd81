// Package netcdf provides an output sink that writes corrected grids
// to NetCDF files, one file per job, in a configured directory.
package netcdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/pkg/config"
)

// Sink writes corrected grids into a directory as <job>.nc
type Sink struct {
	directory string
}

// New sets up a new NetCDF file sink, creating the output directory
// if it does not exist yet
func New(c *config.NetCDFSinkData) (*Sink, error) {
	if c == nil || c.Directory == "" {
		return nil, fmt.Errorf("netcdf sink requires a directory")
	}
	if err := os.MkdirAll(c.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", c.Directory, err)
	}
	return &Sink{directory: c.Directory}, nil
}

// StoreGrid writes the corrected grid to <directory>/<job>.nc
func (s *Sink) StoreGrid(ctx context.Context, job string, g *grid.Grid) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.directory, job+".nc")
	log.Infof("writing corrected grid for job %s to %s", job, path)
	if err := grid.WriteFile(path, g); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Close is a no-op for the file sink
func (s *Sink) Close() error {
	return nil
}
