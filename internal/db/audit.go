package db

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/audit"
)

// InsertAuditEntry stores one event; a repeated event id is ignored.
func (db *DB) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO audit_events (
			event_id, type, occurred_at, session_id, staff_id, appointment_id, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Type, e.OccurredAt.UTC(), nullString(e.SessionID), nullString(e.StaffID),
		nullString(e.AppointmentID), e.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", e.EventID, err)
	}
	return nil
}

// AuditEntries returns events that occurred in [from, to), oldest first.
func (db *DB) AuditEntries(ctx context.Context, from, to time.Time) ([]audit.Entry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_id, type, occurred_at, COALESCE(session_id, ''), COALESCE(staff_id, ''),
		       COALESCE(appointment_id, ''), payload
		FROM audit_events
		WHERE occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at, event_id`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.EventID, &e.Type, &e.OccurredAt, &e.SessionID, &e.StaffID, &e.AppointmentID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteAuditEntriesBefore drops events older than before.
func (db *DB) DeleteAuditEntriesBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM audit_events WHERE occurred_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return res.RowsAffected()
}
