package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/model"
)

// WeeklyHours returns the recurring week of a staff member. Days without a
// row are absent from the map.
func (db *DB) WeeklyHours(ctx context.Context, staffID string) (model.WeeklyHours, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, is_working, start_time, end_time
		FROM weekly_hours WHERE staff_id = ?`, staffID)
	if err != nil {
		return nil, fmt.Errorf("weekly hours of %s: %w", staffID, err)
	}
	defer rows.Close()

	hours := model.WeeklyHours{}
	for rows.Next() {
		var (
			day        int
			working    bool
			start, end sql.NullString
		)
		if err := rows.Scan(&day, &working, &start, &end); err != nil {
			return nil, err
		}
		h := model.DayHours{IsWorking: working}
		if working {
			if h.Start, err = parseTOD(start); err != nil {
				return nil, fmt.Errorf("weekly hours of %s day %d: %w", staffID, day, err)
			}
			if h.End, err = parseTOD(end); err != nil {
				return nil, fmt.Errorf("weekly hours of %s day %d: %w", staffID, day, err)
			}
		}
		hours[time.Weekday(day)] = h
	}
	return hours, rows.Err()
}

// SetWeeklyHours replaces the recurring week of a staff member.
func (db *DB) SetWeeklyHours(ctx context.Context, staffID string, hours model.WeeklyHours) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_hours WHERE staff_id = ?`, staffID); err != nil {
		return fmt.Errorf("clear weekly hours of %s: %w", staffID, err)
	}

	now := time.Now().UTC()
	for day := time.Sunday; day <= time.Saturday; day++ {
		h, ok := hours[day]
		if !ok {
			continue
		}
		var start, end *string
		if h.IsWorking {
			s, e := h.Start.String(), h.End.String()
			start, end = &s, &e
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO weekly_hours (staff_id, day_of_week, is_working, start_time, end_time, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			staffID, int(day), h.IsWorking, start, end, now,
		); err != nil {
			return fmt.Errorf("insert weekly hours of %s day %d: %w", staffID, day, err)
		}
	}
	return tx.Commit()
}

// Override returns the override of staffID for date, or nil when there is none.
func (db *DB) Override(ctx context.Context, staffID string, date time.Time) (*model.DateOverride, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, staff_id, date, is_day_off, start_time, end_time,
		       exclusions, reason, created_at, updated_at
		FROM schedule_overrides
		WHERE staff_id = ? AND date = ?
		LIMIT 1`,
		staffID, date.Format(model.DateLayout),
	)
	o, err := scanOverride(row, date.Location())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("override of %s on %s: %w", staffID, date.Format(model.DateLayout), err)
	}
	return o, nil
}

// ListOverrides returns overrides of staffID within [from, to] by date.
func (db *DB) ListOverrides(ctx context.Context, staffID string, from, to time.Time) ([]model.DateOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, staff_id, date, is_day_off, start_time, end_time,
		       exclusions, reason, created_at, updated_at
		FROM schedule_overrides
		WHERE staff_id = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		staffID, from.Format(model.DateLayout), to.Format(model.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DateOverride
	for rows.Next() {
		o, err := scanOverride(rows, from.Location())
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpsertOverride creates or replaces the override for (StaffID, Date).
func (db *DB) UpsertOverride(ctx context.Context, o *model.DateOverride) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}

	var start, end, exclusions *string
	if o.Start != nil {
		s := o.Start.String()
		start = &s
	}
	if o.End != nil {
		e := o.End.String()
		end = &e
	}
	if len(o.Exclusions) > 0 {
		data, err := json.Marshal(o.Exclusions)
		if err != nil {
			return fmt.Errorf("encode exclusions: %w", err)
		}
		s := string(data)
		exclusions = &s
	}

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO schedule_overrides (
			staff_id, date, is_day_off, start_time, end_time,
			exclusions, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_id, date) DO UPDATE SET
			is_day_off = excluded.is_day_off,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			exclusions = excluded.exclusions,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		o.StaffID, o.Date.Format(model.DateLayout), o.IsDayOff, start, end,
		exclusions, o.Reason, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert override of %s: %w", o.StaffID, err)
	}
	return nil
}

// DeleteOverride removes the override for a date.
func (db *DB) DeleteOverride(ctx context.Context, staffID string, date time.Time) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM schedule_overrides WHERE staff_id = ? AND date = ?",
		staffID, date.Format(model.DateLayout),
	)
	return err
}

// SetDayOff marks a date as not working.
func (db *DB) SetDayOff(ctx context.Context, staffID string, date time.Time, reason string) error {
	return db.UpsertOverride(ctx, &model.DateOverride{
		StaffID:  staffID,
		Date:     date,
		IsDayOff: true,
		Reason:   reason,
	})
}

// SetSpecialHours sets working hours for a single date.
func (db *DB) SetSpecialHours(ctx context.Context, staffID string, date time.Time, start, end model.TimeOfDay, exclusions []model.TimeRange) error {
	return db.UpsertOverride(ctx, &model.DateOverride{
		StaffID:    staffID,
		Date:       date,
		Start:      &start,
		End:        &end,
		Exclusions: exclusions,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner, loc *time.Location) (*model.DateOverride, error) {
	var (
		o                        model.DateOverride
		date                     string
		start, end, excl, reason sql.NullString
	)
	if err := row.Scan(
		&o.ID, &o.StaffID, &date, &o.IsDayOff, &start, &end,
		&excl, &reason, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d, err := model.ParseDate(date, loc)
	if err != nil {
		return nil, err
	}
	o.Date = d

	if start.Valid && end.Valid {
		s, err := parseTOD(start)
		if err != nil {
			return nil, err
		}
		e, err := parseTOD(end)
		if err != nil {
			return nil, err
		}
		o.Start, o.End = &s, &e
	}
	if excl.Valid && excl.String != "" {
		if err := json.Unmarshal([]byte(excl.String), &o.Exclusions); err != nil {
			return nil, fmt.Errorf("decode exclusions: %w", err)
		}
	}
	if reason.Valid {
		o.Reason = reason.String
	}
	return &o, nil
}

func parseTOD(s sql.NullString) (model.TimeOfDay, error) {
	if !s.Valid {
		return 0, fmt.Errorf("missing time")
	}
	return model.ParseTimeOfDay(s.String)
}
