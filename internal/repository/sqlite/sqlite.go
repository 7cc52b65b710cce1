package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// migrations are applied in order; PRAGMA user_version stores how many ran.
var migrations = []string{
	`CREATE TABLE predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		original_name TEXT NOT NULL,
		upload_path TEXT NOT NULL,
		result_path TEXT NOT NULL,
		filesize INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		inference_ms INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX idx_predictions_created_at ON predictions(created_at);`,

	`CREATE TABLE detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prediction_id INTEGER NOT NULL REFERENCES predictions(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		class_id INTEGER DEFAULT 0,
		x INTEGER DEFAULT 0,
		y INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		confidence REAL DEFAULT 0
	);
	CREATE INDEX idx_detections_label ON detections(label);
	CREATE INDEX idx_detections_prediction_id ON detections(prediction_id);`,
}

// DB is the prediction history database. Writers take the embedded lock
// exclusively; the pool holds a single connection.
type DB struct {
	sync.RWMutex
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and brings its
// schema up to date.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	var version int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaVersion returns the number of applied migrations.
func (db *DB) SchemaVersion() (int, error) {
	db.RLock()
	defer db.RUnlock()

	var version int
	err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version)
	return version, err
}

func (db *DB) Close() error {
	return db.conn.Close()
}
