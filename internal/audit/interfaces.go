// Package audit keeps a trail of booking events and exports monthly
// spreadsheets of appointments and events.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"salonbook/internal/model"
)

// Entry is one recorded domain event.
type Entry struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	SessionID     string    `json:"session_id,omitempty"`
	StaffID       string    `json:"staff_id,omitempty"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Payload       string    `json:"payload"`
}

// Store persists audit entries.
type Store interface {
	InsertAuditEntry(ctx context.Context, e Entry) error
	AuditEntries(ctx context.Context, from, to time.Time) ([]Entry, error)
	DeleteAuditEntriesBefore(ctx context.Context, before time.Time) (int64, error)
}

// AppointmentLister lists appointments across all staff.
type AppointmentLister interface {
	AppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

// ExcelWriter writes tabular data to a workbook.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []any) error
	Save(w io.Writer) error
	Close() error
}

// MonthStart returns the first instant of t's month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// GenerateFilename creates a filename like "salonbook_2026-01.xlsx".
func GenerateFilename(month time.Time) string {
	return fmt.Sprintf("salonbook_%s.xlsx", month.Format("2006-01"))
}
