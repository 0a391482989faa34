package model

import (
	"time"

	"salonbook/internal/interval"
)

// ReservationHold is a short-lived claim on a slot while a customer checks out.
type ReservationHold struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	ServiceID string    `json:"service_id,omitempty"`
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Interval returns [StartTime, EndTime).
func (h *ReservationHold) Interval() interval.Interval {
	return interval.Interval{Start: h.StartTime, End: h.EndTime}
}

// ExpiredAt reports whether the hold is no longer active at now.
func (h *ReservationHold) ExpiredAt(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// ActiveIntervals returns intervals of holds still active at now, skipping excludeSession.
func ActiveIntervals(holds []ReservationHold, now time.Time, excludeSession string) []interval.Interval {
	out := make([]interval.Interval, 0, len(holds))
	for i := range holds {
		if holds[i].ExpiredAt(now) {
			continue
		}
		if excludeSession != "" && holds[i].SessionID == excludeSession {
			continue
		}
		out = append(out, holds[i].Interval())
	}
	return out
}
