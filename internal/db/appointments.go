package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/model"
)

const appointmentColumns = `id, staff_id, service_id, session_id, customer_name, customer_phone, customer_email,
	start_time, end_time, status, price_minor, final_price_minor, discount_id, discount_percent,
	created_at, updated_at`

// CreateAppointment stores a new appointment. Times are stored in UTC.
func (db *DB) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a == nil {
		return fmt.Errorf("appointment is nil")
	}
	if a.Status == "" {
		a.Status = model.StatusBooked
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid appointment status %q", a.Status)
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.StaffID, a.ServiceID, nullString(a.SessionID), a.Customer.Name, a.Customer.Phone, nullString(a.Customer.Email),
		a.StartTime.UTC(), a.EndTime.UTC(), string(a.Status), a.PriceMinor, a.FinalPriceMinor,
		nullString(a.DiscountID), a.DiscountPercent, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// GetAppointment returns an appointment by id.
func (db *DB) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return a, nil
}

// BlockingAppointments returns booked or confirmed appointments of staffID
// overlapping [from, to), ordered by start.
func (db *DB) BlockingAppointments(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	return db.queryAppointments(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE staff_id = ?
		AND start_time < ? AND end_time > ?
		AND status IN (?, ?)
		ORDER BY start_time`,
		staffID, to.UTC(), from.UTC(), string(model.StatusBooked), string(model.StatusConfirmed),
	)
}

// ListAppointments returns every appointment of staffID starting in [from, to).
func (db *DB) ListAppointments(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error) {
	return db.queryAppointments(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE staff_id = ?
		AND start_time >= ? AND start_time < ?
		ORDER BY start_time`,
		staffID, from.UTC(), to.UTC(),
	)
}

// AppointmentsBetween returns appointments of every staff member starting in [from, to).
func (db *DB) AppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return db.queryAppointments(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time, staff_id`,
		from.UTC(), to.UTC(),
	)
}

// UpdateAppointmentStatus changes the lifecycle state of an appointment.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid appointment status %q", status)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update appointment %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("appointment %s: %w", id, booking.ErrNotFound)
	}
	return nil
}

func (db *DB) queryAppointments(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAppointment(row rowScanner) (*model.Appointment, error) {
	var (
		a                            model.Appointment
		status                       string
		sessionID, email, discountID sql.NullString
	)
	if err := row.Scan(
		&a.ID, &a.StaffID, &a.ServiceID, &sessionID, &a.Customer.Name, &a.Customer.Phone, &email,
		&a.StartTime, &a.EndTime, &status, &a.PriceMinor, &a.FinalPriceMinor, &discountID, &a.DiscountPercent,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = model.AppointmentStatus(status)
	a.SessionID = sessionID.String
	a.Customer.Email = email.String
	a.DiscountID = discountID.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
