package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS corrected (
    time timestamp WITH TIME ZONE NOT NULL,
    job text NOT NULL,
    variable text NULL,
    x float8 NOT NULL,
    y float8 NOT NULL,
    value float8 NULL
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('corrected', 'time', if_not_exists => true);`

const createJobIndexSQL = `CREATE INDEX IF NOT EXISTS corrected_job_cell_idx ON corrected (job, x, y, time DESC);`
