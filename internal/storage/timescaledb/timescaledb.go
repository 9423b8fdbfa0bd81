// Package timescaledb stores corrected series in a TimescaleDB
// hypertable, one row per (time, cell) with the job name attached.
package timescaledb

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/climtools/qqmap/internal/database"
	"github.com/climtools/qqmap/internal/grid"
	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/pkg/config"
	"gorm.io/gorm"
)

// insertBatchSize bounds the row count per INSERT statement
const insertBatchSize = 1000

// Sink holds the connection for a TimescaleDB output backend
type Sink struct {
	DB *gorm.DB
}

// We declare the Tabler interface for purposes of customizing the table name in the DB
type Tabler interface {
	TableName() string
}

// CorrectedValue is one corrected sample at one target grid cell
type CorrectedValue struct {
	Time     time.Time `gorm:"column:time"`
	Job      string    `gorm:"column:job"`
	Variable string    `gorm:"column:variable"`
	X        float64   `gorm:"column:x"`
	Y        float64   `gorm:"column:y"`
	Value    float64   `gorm:"column:value"`
}

// TableName implements the GORM Tabler interface for the CorrectedValue struct
func (CorrectedValue) TableName() string {
	return "corrected"
}

// New sets up a new TimescaleDB output sink
func New(ctx context.Context, c *config.TimescaleDBData) (*Sink, error) {
	if c == nil || c.ConnectionString == "" {
		return nil, fmt.Errorf("timescaledb sink requires a connection string")
	}

	t := Sink{}

	var err error
	t.DB, err = database.CreateConnection(c.ConnectionString)
	if err != nil {
		log.Warn("warning: unable to create a TimescaleDB connection:", err)
		return nil, err
	}

	if err := t.CheckHealth(ctx); err != nil {
		return nil, err
	}

	// Create the database table
	log.Info("creating database table...")
	err = t.DB.WithContext(ctx).Exec(createTableSQL).Error
	if err != nil {
		log.Warn("warning: could not create table in database")
		return nil, err
	}

	// Create the TimescaleDB extension
	log.Info("creating TimescaleDB extension...")
	err = t.DB.WithContext(ctx).Exec(createExtensionSQL).Error
	if err != nil {
		log.Warn("warning: could not create TimescaleDB extension")
		return nil, err
	}

	// Create the hypertable
	log.Info("creating hypertable...")
	err = t.DB.WithContext(ctx).Exec(createHypertableSQL).Error
	if err != nil {
		log.Warn("warning: could not create hypertable")
		return nil, err
	}

	// Create the per-job cell index
	log.Info("creating job index...")
	err = t.DB.WithContext(ctx).Exec(createJobIndexSQL).Error
	if err != nil {
		log.Warn("warning: could not create job index")
		return nil, err
	}

	return &t, nil
}

// StoreGrid replaces any previously stored rows for the job and
// batch-inserts the corrected values. Missing samples produce no rows.
func (t *Sink) StoreGrid(ctx context.Context, job string, g *grid.Grid) error {
	db := t.DB.WithContext(ctx)

	err := db.Exec(`DELETE FROM corrected WHERE job = ?`, job).Error
	if err != nil {
		return fmt.Errorf("failed to clear previous rows for job %s: %w", job, err)
	}

	rows := make([]CorrectedValue, 0, insertBatchSize)
	stored := 0
	for xi := 0; xi < g.Nx(); xi++ {
		for yi := 0; yi < g.Ny(); yi++ {
			for ti, when := range g.Times {
				v := g.At(xi, yi, ti)
				if math.IsNaN(v) {
					continue
				}
				rows = append(rows, CorrectedValue{
					Time:     when,
					Job:      job,
					Variable: g.Name,
					X:        g.Xs[xi],
					Y:        g.Ys[yi],
					Value:    v,
				})
				stored++
			}
		}
	}

	if len(rows) == 0 {
		log.Warnf("job %s produced no storable values", job)
		return nil
	}

	if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert corrected rows for job %s: %w", job, err)
	}

	log.Infof("stored %d corrected values for job %s", stored, job)
	return nil
}

// Close closes the underlying database connection
func (t *Sink) Close() error {
	if t.DB == nil {
		return nil
	}
	sqlDB, err := t.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
