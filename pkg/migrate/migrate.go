// Package migrate applies ordered, versioned schema migrations to a
// SQL database. Migrations are declared in code by the caller; applied
// versions are tracked in a table so repeated runs are no-ops.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Migrator handles the execution of migrations
type Migrator struct {
	db         *sql.DB
	dialect    string // "sqlite" or "postgres"
	table      string
	migrations []Migration
}

// New creates a migrator for the given connection and migration set.
// An empty table name falls back to "schema_migrations".
func New(db *sql.DB, dialect string, table string, migrations []Migration) *Migrator {
	if table == "" {
		table = "schema_migrations"
	}
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	return &Migrator{
		db:         db,
		dialect:    dialect,
		table:      table,
		migrations: sorted,
	}
}

// Up applies all pending migrations in version order
func (m *Migrator) Up() error {
	if err := m.createVersionTable(); err != nil {
		return err
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		if err := m.execute(migration, true); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}

	return nil
}

// DownTo rolls back migrations until the schema is at targetVersion
func (m *Migrator) DownTo(targetVersion int) error {
	if err := m.createVersionTable(); err != nil {
		return err
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > targetVersion && migration.Version <= current {
			if err := m.execute(migration, false); err != nil {
				return fmt.Errorf("failed to rollback migration %d (%s): %w", migration.Version, migration.Name, err)
			}
		}
	}

	return nil
}

// Pending returns the migrations that have not been applied yet
func (m *Migrator) Pending() ([]Migration, error) {
	if err := m.createVersionTable(); err != nil {
		return nil, err
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range m.migrations {
		if migration.Version > current {
			pending = append(pending, migration)
		}
	}

	return pending, nil
}

// CurrentVersion returns the highest applied migration version
func (m *Migrator) CurrentVersion() (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", m.table)

	var version int
	if err := m.db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// execute runs a single migration up or down inside a transaction,
// recording the resulting schema version in the tracking table
func (m *Migrator) execute(migration Migration, up bool) error {
	script := migration.Up
	version := migration.Version
	if !up {
		script = migration.Down
		version = migration.Version - 1
	}
	if script == "" {
		return fmt.Errorf("migration %d has no script", migration.Version)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.setVersion(tx, version); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}

// createVersionTable creates the migration tracking table if absent
func (m *Migrator) createVersionTable() error {
	timestampType := "DATETIME"
	if m.dialect == "postgres" {
		timestampType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, m.table, timestampType)

	if _, err := m.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	return nil
}

// setVersion records the schema version, inside the migration's
// transaction. Rows above the recorded version are pruned so rollbacks
// leave MAX(version) pointing at the actual schema state.
func (m *Migrator) setVersion(db DB, version int) error {
	if version == 0 {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", m.table)); err != nil {
			return fmt.Errorf("failed to set version: %w", err)
		}
		return nil
	}

	placeholder := "?"
	if m.dialect == "postgres" {
		placeholder = "$1"
	}
	prune := fmt.Sprintf("DELETE FROM %s WHERE version > %s", m.table, placeholder)
	if _, err := db.Exec(prune, version); err != nil {
		return fmt.Errorf("failed to prune version records: %w", err)
	}

	var err error
	if m.dialect == "postgres" {
		query := fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
		`, m.table)
		_, err = db.Exec(query, version)
	} else {
		query := fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)
		`, m.table)
		_, err = db.Exec(query, version)
	}

	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	return nil
}
