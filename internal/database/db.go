package database

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database represents the database connection and operations
type Database struct {
	DB *sql.DB
}

// New creates a new Database instance
func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// Init creates the required tables if they don't exist
func (d *Database) Init() error {
	createTables := `
	CREATE TABLE IF NOT EXISTS detections (
		frame_id TEXT NOT NULL,
		ts BIGINT NOT NULL,
		seq INT NOT NULL,
		class TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		box JSONB NOT NULL,
		source TEXT NOT NULL,
		frame_s3_path TEXT NOT NULL,
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		ttl BIGINT NOT NULL,
		PRIMARY KEY (frame_id, ts, seq)
	);

	CREATE INDEX IF NOT EXISTS detections_ts_idx ON detections (ts);

	CREATE TABLE IF NOT EXISTS command_history (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		command TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		last_seen TIMESTAMP NOT NULL
	);
	`

	_, err := d.DB.Exec(createTables)
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}
