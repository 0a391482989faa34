package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"salonbook/internal/model"
)

// DiscountRules returns every rule in configured order.
func (db *DB) DiscountRules(ctx context.Context) ([]model.DiscountRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, percent, days, start_time, end_time,
		       service_ids, staff_ids, valid_from, valid_until
		FROM discount_rules
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query discounts: %w", err)
	}
	defer rows.Close()

	var out []model.DiscountRule
	for rows.Next() {
		var (
			r                  model.DiscountRule
			days, services     string
			start, end         string
			staff, from, until sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Percent, &days, &start, &end,
			&services, &staff, &from, &until); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(days), &r.Days); err != nil {
			return nil, fmt.Errorf("discount %s days: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(services), &r.ServiceIDs); err != nil {
			return nil, fmt.Errorf("discount %s services: %w", r.ID, err)
		}
		if staff.Valid && staff.String != "" {
			if err := json.Unmarshal([]byte(staff.String), &r.StaffIDs); err != nil {
				return nil, fmt.Errorf("discount %s staff: %w", r.ID, err)
			}
		}
		if r.Start, err = model.ParseTimeOfDay(start); err != nil {
			return nil, fmt.Errorf("discount %s: %w", r.ID, err)
		}
		if r.End, err = model.ParseTimeOfDay(end); err != nil {
			return nil, fmt.Errorf("discount %s: %w", r.ID, err)
		}
		if r.ValidFrom, err = parseNullDate(from); err != nil {
			return nil, fmt.Errorf("discount %s: %w", r.ID, err)
		}
		if r.ValidUntil, err = parseNullDate(until); err != nil {
			return nil, fmt.Errorf("discount %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceDiscounts swaps the whole rule set atomically; slice order is kept.
func (db *DB) ReplaceDiscounts(ctx context.Context, rules []model.DiscountRule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM discount_rules`); err != nil {
		return fmt.Errorf("clear discounts: %w", err)
	}
	for i, r := range rules {
		days, err := json.Marshal(r.Days)
		if err != nil {
			return err
		}
		services, err := json.Marshal(r.ServiceIDs)
		if err != nil {
			return err
		}
		var staff sql.NullString
		if len(r.StaffIDs) > 0 {
			data, err := json.Marshal(r.StaffIDs)
			if err != nil {
				return err
			}
			staff = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO discount_rules (
				id, name, percent, days, start_time, end_time,
				service_ids, staff_ids, valid_from, valid_until, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.Percent, string(days), r.Start.String(), r.End.String(),
			string(services), staff, formatNullDate(r.ValidFrom), formatNullDate(r.ValidUntil), i,
		); err != nil {
			return fmt.Errorf("insert discount %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := model.ParseDate(s.String, time.UTC)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func formatNullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(model.DateLayout), Valid: true}
}
