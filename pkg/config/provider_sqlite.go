package config

import (
	"database/sql"
	"fmt"

	"github.com/climtools/qqmap/pkg/migrate"
	_ "modernc.org/sqlite"
)

// sqliteMigrations defines the configuration database schema. The
// provider applies pending migrations on open, so a fresh file becomes
// a usable (empty) configuration database.
var sqliteMigrations = []migrate.Migration{
	{
		Version: 1,
		Name:    "initial schema",
		Up: `
			CREATE TABLE configs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				config_id INTEGER NOT NULL REFERENCES configs(id),
				name TEXT NOT NULL,
				observed_path TEXT NOT NULL,
				observed_variable TEXT,
				reference_path TEXT NOT NULL,
				reference_variable TEXT,
				target_path TEXT NOT NULL,
				target_variable TEXT,
				method TEXT,
				detrend INTEGER NOT NULL DEFAULT 0,
				detrend_degree INTEGER,
				window_width INTEGER,
				rankn INTEGER,
				thresnan REAL,
				keep_original INTEGER NOT NULL DEFAULT 0,
				interpolation TEXT,
				extrapolation TEXT,
				partition_fraction REAL,
				seed INTEGER,
				workers INTEGER,
				UNIQUE (config_id, name)
			);

			CREATE TABLE sinks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				config_id INTEGER NOT NULL REFERENCES configs(id),
				type TEXT NOT NULL,
				netcdf_directory TEXT,
				timescaledb_connection TEXT
			);
		`,
		Down: `
			DROP TABLE sinks;
			DROP TABLE jobs;
			DROP TABLE configs;
		`,
	},
}

// SchemaMigrations returns the configuration database migrations, oldest
// first, for tooling that manages the schema outside the provider.
func SchemaMigrations() []migrate.Migration {
	out := make([]migrate.Migration, len(sqliteMigrations))
	copy(out, sqliteMigrations)
	return out
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider,
// migrating the schema to the current version if needed
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := migrate.New(db, "sqlite", "", sqliteMigrations).Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate config schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	jobs, err := s.GetJobs()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	config.Jobs = jobs

	sinks, err := s.GetSinks()
	if err != nil {
		return nil, fmt.Errorf("failed to load sinks: %w", err)
	}
	config.Sinks = sinks

	return config, nil
}

// GetJobs returns correction job configurations from the database
func (s *SQLiteProvider) GetJobs() ([]JobData, error) {
	query := `
		SELECT name, observed_path, observed_variable,
		       reference_path, reference_variable,
		       target_path, target_variable,
		       method, detrend, detrend_degree, window_width, rankn,
		       thresnan, keep_original, interpolation, extrapolation,
		       partition_fraction, seed, workers
		FROM jobs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobData
	for rows.Next() {
		var job JobData
		var obsVar, refVar, tgtVar, method, interp, extrap sql.NullString
		var detrendDegree, windowWidth, rankn, seed, workers sql.NullInt64
		var thresnan, partition sql.NullFloat64

		err := rows.Scan(
			&job.Name, &job.Observed.Path, &obsVar,
			&job.Reference.Path, &refVar,
			&job.Target.Path, &tgtVar,
			&method, &job.Detrend, &detrendDegree, &windowWidth, &rankn,
			&thresnan, &job.KeepOriginal, &interp, &extrap,
			&partition, &seed, &workers,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		// Convert nullable string fields to empty strings if NULL
		if obsVar.Valid {
			job.Observed.Variable = obsVar.String
		}
		if refVar.Valid {
			job.Reference.Variable = refVar.String
		}
		if tgtVar.Valid {
			job.Target.Variable = tgtVar.String
		}
		if method.Valid {
			job.Method = method.String
		}
		if interp.Valid {
			job.Interpolation = interp.String
		}
		if extrap.Valid {
			job.Extrapolation = extrap.String
		}

		// Convert nullable numeric fields to zero if NULL
		if detrendDegree.Valid {
			job.DetrendDegree = int(detrendDegree.Int64)
		}
		if windowWidth.Valid {
			job.Window = int(windowWidth.Int64)
		}
		if rankn.Valid {
			job.RankN = int(rankn.Int64)
		}
		if partition.Valid {
			job.Partition = partition.Float64
		}
		if seed.Valid {
			job.Seed = seed.Int64
		}
		if workers.Valid {
			job.Workers = int(workers.Int64)
		}

		// A NULL threshold means "engine default"; zero is a real value
		if thresnan.Valid {
			v := thresnan.Float64
			job.ThresNaN = &v
		}

		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}

	return jobs, nil
}

// GetSinks returns output sink configurations from the database
func (s *SQLiteProvider) GetSinks() ([]SinkData, error) {
	query := `
		SELECT type, netcdf_directory, timescaledb_connection
		FROM sinks
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sinks: %w", err)
	}
	defer rows.Close()

	var sinks []SinkData
	for rows.Next() {
		var sink SinkData
		var directory, connection sql.NullString

		if err := rows.Scan(&sink.Type, &directory, &connection); err != nil {
			return nil, fmt.Errorf("failed to scan sink row: %w", err)
		}

		switch sink.Type {
		case "netcdf":
			if directory.Valid {
				sink.NetCDF = &NetCDFSinkData{Directory: directory.String}
			}
		case "timescaledb":
			if connection.Valid {
				sink.TimescaleDB = &TimescaleDBData{ConnectionString: connection.String}
			}
		}

		sinks = append(sinks, sink)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sink rows: %w", err)
	}

	return sinks, nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write methods for configuration management

// SaveConfig saves complete configuration to the database
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to resolve config record: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for _, job := range configData.Jobs {
		if err := s.insertJob(tx, configID, &job); err != nil {
			return fmt.Errorf("failed to insert job %s: %w", job.Name, err)
		}
	}

	for _, sink := range configData.Sinks {
		if err := s.insertSink(tx, configID, &sink); err != nil {
			return fmt.Errorf("failed to insert sink %s: %w", sink.Type, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM configs WHERE name = 'default'`).Scan(&id)
	if err == sql.ErrNoRows {
		result, err := tx.Exec(`INSERT INTO configs (name) VALUES ('default')`)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM jobs WHERE config_id = ?",
		"DELETE FROM sinks WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertJob(tx *sql.Tx, configID int64, job *JobData) error {
	query := `
		INSERT INTO jobs (
			config_id, name, observed_path, observed_variable,
			reference_path, reference_variable, target_path, target_variable,
			method, detrend, detrend_degree, window_width, rankn,
			thresnan, keep_original, interpolation, extrapolation,
			partition_fraction, seed, workers
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var thresnan sql.NullFloat64
	if job.ThresNaN != nil {
		thresnan = sql.NullFloat64{Float64: *job.ThresNaN, Valid: true}
	}

	_, err := tx.Exec(query,
		configID, job.Name, job.Observed.Path, job.Observed.Variable,
		job.Reference.Path, job.Reference.Variable, job.Target.Path, job.Target.Variable,
		job.Method, job.Detrend, job.DetrendDegree, job.Window, job.RankN,
		thresnan, job.KeepOriginal, job.Interpolation, job.Extrapolation,
		job.Partition, job.Seed, job.Workers,
	)
	return err
}

func (s *SQLiteProvider) insertSink(tx *sql.Tx, configID int64, sink *SinkData) error {
	var directory, connection sql.NullString
	if sink.NetCDF != nil {
		directory = sql.NullString{String: sink.NetCDF.Directory, Valid: true}
	}
	if sink.TimescaleDB != nil {
		connection = sql.NullString{String: sink.TimescaleDB.ConnectionString, Valid: true}
	}

	query := `
		INSERT INTO sinks (config_id, type, netcdf_directory, timescaledb_connection)
		VALUES (?, ?, ?, ?)
	`
	_, err := tx.Exec(query, configID, sink.Type, directory, connection)
	return err
}
