package model

import (
	"time"

	"salonbook/internal/interval"
)

// DayHours is one row of a staff member's recurring week.
type DayHours struct {
	IsWorking bool      `json:"is_working"`
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
}

// WeeklyHours maps day of week (0=Sunday .. 6=Saturday) to working hours.
type WeeklyHours map[time.Weekday]DayHours

// TimeRange is a wall-clock range [Start, End) within one day.
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// On resolves the range to absolute timestamps on day.
func (r TimeRange) On(day time.Time) (interval.Interval, error) {
	return interval.New(r.Start.On(day), r.End.On(day))
}

// DateOverride replaces or trims the recurring hours for one calendar date.
type DateOverride struct {
	ID         int64       `json:"id"`
	StaffID    string      `json:"staff_id"`
	Date       time.Time   `json:"date"`
	IsDayOff   bool        `json:"is_day_off"`
	Start      *TimeOfDay  `json:"start,omitempty"`
	End        *TimeOfDay  `json:"end,omitempty"`
	Exclusions []TimeRange `json:"exclusions,omitempty"` // lunch, partial time off
	Reason     string      `json:"reason,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// HasHours reports whether the override supplies its own working hours.
func (o *DateOverride) HasHours() bool {
	return o != nil && o.Start != nil && o.End != nil
}

// WorkingWindow is the resolved availability of one staff member on one date.
// It is computed per query and never stored.
type WorkingWindow struct {
	StaffID   string              `json:"staff_id"`
	Date      time.Time           `json:"date"`
	Available bool                `json:"available"`
	Start     TimeOfDay           `json:"start"`
	End       TimeOfDay           `json:"end"`
	Excluded  []interval.Interval `json:"excluded,omitempty"`
	Fallback  bool                `json:"fallback,omitempty"` // produced by the house-hours policy
}

// StartAt returns the absolute opening time.
func (w WorkingWindow) StartAt() time.Time { return w.Start.On(w.Date) }

// EndAt returns the absolute closing time.
func (w WorkingWindow) EndAt() time.Time { return w.End.On(w.Date) }

// Permits reports whether iv lies inside the window and clear of every exclusion.
func (w WorkingWindow) Permits(iv interval.Interval) bool {
	if !w.Available {
		return false
	}
	if iv.Start.Before(w.StartAt()) || iv.End.After(w.EndAt()) {
		return false
	}
	return !interval.OverlapsAny(iv, w.Excluded)
}
