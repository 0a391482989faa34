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

// Service returns a service by id.
func (db *DB) Service(ctx context.Context, id string) (*model.Service, error) {
	var s model.Service
	err := db.QueryRowContext(ctx, `
		SELECT id, name, duration_minutes, price_minor, is_active, created_at, updated_at
		FROM services WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceMinor, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}
	return &s, nil
}

// ListServices returns every service ordered by name.
func (db *DB) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, duration_minutes, price_minor, is_active, created_at, updated_at
		FROM services ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.PriceMinor, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertService creates or updates a service, keeping created_at.
func (db *DB) UpsertService(ctx context.Context, s *model.Service) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (id, name, duration_minutes, price_minor, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			duration_minutes = excluded.duration_minutes,
			price_minor = excluded.price_minor,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		s.ID, s.Name, s.DurationMinutes, s.PriceMinor, s.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert service %s: %w", s.ID, err)
	}
	return nil
}

// Staff returns a staff member with their services.
func (db *DB) Staff(ctx context.Context, id string) (*model.Staff, error) {
	var s model.Staff
	err := db.QueryRowContext(ctx, `
		SELECT id, name, sort_order, is_active, created_at, updated_at
		FROM staff WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.SortOrder, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("staff %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get staff %s: %w", id, err)
	}

	if s.ServiceIDs, err = db.staffServices(ctx, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStaff returns every staff member in pool order.
func (db *DB) ListStaff(ctx context.Context) ([]model.Staff, error) {
	return db.queryStaff(ctx, `
		SELECT id, name, sort_order, is_active, created_at, updated_at
		FROM staff ORDER BY sort_order, id`)
}

// StaffForService returns active staff qualified for serviceID in pool order.
func (db *DB) StaffForService(ctx context.Context, serviceID string) ([]model.Staff, error) {
	return db.queryStaff(ctx, `
		SELECT s.id, s.name, s.sort_order, s.is_active, s.created_at, s.updated_at
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE ss.service_id = ? AND s.is_active = 1
		ORDER BY s.sort_order, s.id`, serviceID)
}

func (db *DB) queryStaff(ctx context.Context, query string, args ...any) ([]model.Staff, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.Name, &s.SortOrder, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].ServiceIDs, err = db.staffServices(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) staffServices(ctx context.Context, staffID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT service_id FROM staff_services WHERE staff_id = ? ORDER BY service_id`, staffID)
	if err != nil {
		return nil, fmt.Errorf("list services of %s: %w", staffID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertStaff creates or updates a staff member and replaces their service set.
func (db *DB) UpsertStaff(ctx context.Context, s *model.Staff) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO staff (id, name, sort_order, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sort_order = excluded.sort_order,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		s.ID, s.Name, s.SortOrder, s.IsActive, now, now,
	); err != nil {
		return fmt.Errorf("upsert staff %s: %w", s.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM staff_services WHERE staff_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear services of %s: %w", s.ID, err)
	}
	for _, serviceID := range s.ServiceIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO staff_services (staff_id, service_id) VALUES (?, ?)`, s.ID, serviceID,
		); err != nil {
			return fmt.Errorf("link %s to %s: %w", s.ID, serviceID, err)
		}
	}
	return tx.Commit()
}
