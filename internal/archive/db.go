// internal/archive/db.go

// Package archive keeps a write-once local copy of every transmitted daily
// report.
package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/protocol"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no archived report exists for a date.
var ErrNotFound = errors.New("no archived report for date")

// DB wraps the SQLite archive
type DB struct {
	db *sql.DB
}

// Open opens or creates the archive database
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		date TEXT PRIMARY KEY,
		hostname TEXT NOT NULL,
		active_hours INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_reports_hostname ON reports(hostname);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Store archives one transmitted report. Archive rows are write-once: a
// second store for the same date is a no-op, never an overwrite.
func (d *DB) Store(r *protocol.DailyReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		INSERT OR IGNORE INTO reports (date, hostname, active_hours, payload)
		VALUES (?, ?, ?, ?)
	`, r.Date, r.Hostname, r.ActiveHours, string(payload))

	return err
}

// Get returns the archived report for a date.
func (d *DB) Get(date string) (*protocol.DailyReport, error) {
	var payload string
	err := d.db.QueryRow(`SELECT payload FROM reports WHERE date = ?`, date).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
	}
	if err != nil {
		return nil, err
	}

	var r protocol.DailyReport
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Recent returns the newest archived reports, latest first.
func (d *DB) Recent(limit int) ([]protocol.DailyReport, error) {
	rows, err := d.db.Query(`
		SELECT payload FROM reports
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []protocol.DailyReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r protocol.DailyReport
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Prune deletes archived reports older than the cutoff date (YYYY-MM-DD)
// and returns how many rows went away.
func (d *DB) Prune(cutoff string) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM reports WHERE date < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
