package timescaledb

import (
	"context"
	"fmt"
)

// CheckHealth verifies that the database connection is usable: the
// connection pings and a trivial query round-trips
func (t *Sink) CheckHealth(ctx context.Context) error {
	if t.DB == nil {
		return fmt.Errorf("timescaledb connection is nil")
	}

	sqlDB, err := t.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := t.DB.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}

	return nil
}
