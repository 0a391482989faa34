package db

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/model"
)

// SyncCatalog applies salon.yaml to the database: it upserts services and
// staff, rewrites weekly hours, deactivates whatever disappeared from the
// file, replaces discount rules and marks holidays as days off.
func (db *DB) SyncCatalog(ctx context.Context, cfg *config.SalonConfig, loc *time.Location) error {
	if cfg == nil {
		return fmt.Errorf("salon config is nil")
	}
	if loc == nil {
		loc = time.UTC
	}

	seenServices := make(map[string]struct{}, len(cfg.Services))
	for _, s := range cfg.ServiceModels() {
		if err := db.UpsertService(ctx, &s); err != nil {
			return fmt.Errorf("sync service %s: %w", s.ID, err)
		}
		seenServices[s.ID] = struct{}{}
	}

	seenStaff := make(map[string]struct{}, len(cfg.Staff))
	for i, s := range cfg.StaffModels() {
		if err := db.UpsertStaff(ctx, &s); err != nil {
			return fmt.Errorf("sync staff %s: %w", s.ID, err)
		}
		if err := db.SetWeeklyHours(ctx, s.ID, cfg.WeeklyHours(cfg.Staff[i])); err != nil {
			return fmt.Errorf("sync staff %s schedule: %w", s.ID, err)
		}
		seenStaff[s.ID] = struct{}{}
	}

	if err := db.deactivateMissing(ctx, "services", seenServices); err != nil {
		return err
	}
	if err := db.deactivateMissing(ctx, "staff", seenStaff); err != nil {
		return err
	}

	if err := db.ReplaceDiscounts(ctx, cfg.DiscountRules(loc)); err != nil {
		return fmt.Errorf("sync discounts: %w", err)
	}

	for _, h := range cfg.Holidays {
		date, err := model.ParseDate(h.Date, loc)
		if err != nil {
			return fmt.Errorf("parse holiday %s: %w", h.Date, err)
		}
		for id := range seenStaff {
			if err := db.SetDayOff(ctx, id, date, h.Name); err != nil {
				return fmt.Errorf("holiday %s for %s: %w", h.Date, id, err)
			}
		}
	}
	return nil
}

// deactivateMissing flags rows of table whose id is not in seen.
// table is one of the fixed catalog tables, never user input.
func (db *DB) deactivateMissing(ctx context.Context, table string, seen map[string]struct{}) error {
	rows, err := db.QueryContext(ctx, `SELECT id FROM `+table+` WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, id := range stale {
		if _, err := db.ExecContext(ctx,
			`UPDATE `+table+` SET is_active = 0, updated_at = ? WHERE id = ?`, now, id,
		); err != nil {
			return fmt.Errorf("deactivate %s %s: %w", table, id, err)
		}
	}
	return nil
}
