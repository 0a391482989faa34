// Package availability merges a staff member's recurring week with per-date
// overrides into the working window for one calendar date.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/interval"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
)

// ScheduleSource reads the externally owned schedule records.
type ScheduleSource interface {
	// WeeklyHours returns the recurring week for a staff member.
	WeeklyHours(ctx context.Context, staffID string) (model.WeeklyHours, error)

	// Override returns the override for the date, or nil when there is none.
	Override(ctx context.Context, staffID string, date time.Time) (*model.DateOverride, error)
}

// FallbackPolicy controls what happens when a staff member's hours are missing.
type FallbackPolicy struct {
	Enabled bool
	Start   model.TimeOfDay
	End     model.TimeOfDay
}

// DefaultFallback returns the house hours used when schedule data is missing (10:00-19:00).
func DefaultFallback() FallbackPolicy {
	return FallbackPolicy{
		Enabled: true,
		Start:   model.MustTimeOfDay("10:00"),
		End:     model.MustTimeOfDay("19:00"),
	}
}

// ConfigurationGapError reports missing working-hours data with the fallback disabled.
type ConfigurationGapError struct {
	StaffID string
	Date    time.Time
	Err     error
}

func (e *ConfigurationGapError) Error() string {
	msg := fmt.Sprintf("no working hours for staff %s on %s", e.StaffID, e.Date.Format(model.DateLayout))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationGapError) Unwrap() error { return e.Err }

// Resolver computes working windows. It holds no mutable state.
type Resolver struct {
	source   ScheduleSource
	fallback FallbackPolicy
	logger   zerolog.Logger
}

// NewResolver creates a resolver over source.
func NewResolver(source ScheduleSource, fallback FallbackPolicy, logger zerolog.Logger) *Resolver {
	return &Resolver{
		source:   source,
		fallback: fallback,
		logger:   logger.With().Str("component", "availability").Logger(),
	}
}

// Resolve returns the working window of staffID on date.
func (r *Resolver) Resolve(ctx context.Context, staffID string, date time.Time) (model.WorkingWindow, error) {
	date = model.DateOf(date)

	var sourceErr error
	weekly, err := r.source.WeeklyHours(ctx, staffID)
	if err != nil {
		if ctx.Err() != nil {
			return model.WorkingWindow{}, ctx.Err()
		}
		sourceErr = fmt.Errorf("load weekly hours: %w", err)
		weekly = nil
	}

	override, err := r.source.Override(ctx, staffID, date)
	if err != nil {
		if ctx.Err() != nil {
			return model.WorkingWindow{}, ctx.Err()
		}
		r.logger.Warn().Err(err).Str("staff_id", staffID).Str("date", date.Format(model.DateLayout)).
			Msg("override lookup failed, using recurring hours")
		override = nil
	}

	window, gap := Merge(staffID, date, weekly, override)
	if !gap {
		return window, nil
	}

	if !r.fallback.Enabled {
		return window, &ConfigurationGapError{StaffID: staffID, Date: date, Err: sourceErr}
	}

	metrics.IncAvailabilityFallback()
	evt := r.logger.Warn().Str("staff_id", staffID).Str("date", date.Format(model.DateLayout))
	if sourceErr != nil {
		evt = evt.Err(sourceErr)
	}
	evt.Str("house_hours", r.fallback.Start.String()+"-"+r.fallback.End.String()).
		Msg("working hours missing, using house hours")

	return applyFallback(window, r.fallback, override), nil
}

// Merge combines recurring hours and an optional override. The second result is
// true when there is no data for the date at all (a configuration gap).
func Merge(staffID string, date time.Time, weekly model.WeeklyHours, override *model.DateOverride) (model.WorkingWindow, bool) {
	date = model.DateOf(date)
	window := model.WorkingWindow{StaffID: staffID, Date: date}

	if override != nil && override.IsDayOff {
		return window, false
	}

	var start, end model.TimeOfDay
	if override.HasHours() {
		start, end = *override.Start, *override.End
	} else {
		day, ok := weekly[date.Weekday()]
		if !ok {
			return window, true
		}
		if !day.IsWorking {
			return window, false
		}
		start, end = day.Start, day.End
	}

	if end <= start {
		return window, false
	}

	window.Available = true
	window.Start = start
	window.End = end
	window.Excluded = exclusions(date, override)
	return window, false
}

func applyFallback(window model.WorkingWindow, policy FallbackPolicy, override *model.DateOverride) model.WorkingWindow {
	window.Available = policy.End > policy.Start
	window.Start = policy.Start
	window.End = policy.End
	window.Fallback = true
	window.Excluded = exclusions(window.Date, override)
	return window
}

func exclusions(date time.Time, override *model.DateOverride) []interval.Interval {
	if override == nil || len(override.Exclusions) == 0 {
		return nil
	}
	out := make([]interval.Interval, 0, len(override.Exclusions))
	for _, ex := range override.Exclusions {
		iv, err := ex.On(date)
		if err != nil {
			continue // empty or inverted range excludes nothing
		}
		out = append(out, iv)
	}
	return out
}
