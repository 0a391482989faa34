// Package db is the SQLite store behind the booking engine: catalog,
// schedules, appointments, discount rules and the audit trail.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the salon engine.
type DB struct {
	*sql.DB
}

// Open opens the database at path and runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price_minor INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS staff (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS staff_services (
			staff_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			PRIMARY KEY (staff_id, service_id),
			FOREIGN KEY (staff_id) REFERENCES staff(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		// Recurring week, 0=Sunday .. 6=Saturday.
		`CREATE TABLE IF NOT EXISTS weekly_hours (
			staff_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			is_working BOOLEAN NOT NULL DEFAULT 1,
			start_time TEXT,
			end_time TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (staff_id, day_of_week),
			FOREIGN KEY (staff_id) REFERENCES staff(id)
		)`,

		// One-off changes; date is YYYY-MM-DD, exclusions is a JSON array of ranges.
		`CREATE TABLE IF NOT EXISTS schedule_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			staff_id TEXT NOT NULL,
			date TEXT NOT NULL,
			is_day_off BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT,
			end_time TEXT,
			exclusions TEXT,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (staff_id, date),
			FOREIGN KEY (staff_id) REFERENCES staff(id)
		)`,

		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			staff_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			session_id TEXT,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_email TEXT,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'booked',
			price_minor INTEGER NOT NULL DEFAULT 0,
			final_price_minor INTEGER NOT NULL DEFAULT 0,
			discount_id TEXT,
			discount_percent REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (staff_id) REFERENCES staff(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		// Days, service and staff sets are JSON arrays; position keeps file order.
		`CREATE TABLE IF NOT EXISTS discount_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			percent REAL NOT NULL,
			days TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			service_ids TEXT NOT NULL,
			staff_ids TEXT,
			valid_from TEXT,
			valid_until TEXT,
			position INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS audit_events (
			event_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			occurred_at DATETIME NOT NULL,
			session_id TEXT,
			staff_id TEXT,
			appointment_id TEXT,
			payload TEXT NOT NULL
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_staff_active ON staff(is_active, sort_order)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_staff_date ON schedule_overrides(staff_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_times ON appointments(staff_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_start ON appointments(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_occurred ON audit_events(occurred_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
