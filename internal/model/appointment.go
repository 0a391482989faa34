package model

import (
	"time"

	"salonbook/internal/interval"
)

// AppointmentStatus is the lifecycle state of a confirmed booking.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

// BlockingStatuses are the statuses that occupy a staff member's time.
var BlockingStatuses = []AppointmentStatus{StatusBooked, StatusConfirmed}

// Blocks reports whether an appointment in this status prevents new slots.
func (s AppointmentStatus) Blocks() bool {
	return s == StatusBooked || s == StatusConfirmed
}

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Customer is the contact captured at confirmation.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

type Appointment struct {
	ID              string            `json:"id"`
	StaffID         string            `json:"staff_id"`
	ServiceID       string            `json:"service_id"`
	SessionID       string            `json:"session_id,omitempty"`
	Customer        Customer          `json:"customer"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	Status          AppointmentStatus `json:"status"`
	PriceMinor      int64             `json:"price_minor"`       // list price
	FinalPriceMinor int64             `json:"final_price_minor"` // after discount, rounded once
	DiscountID      string            `json:"discount_id,omitempty"`
	DiscountPercent float64           `json:"discount_percent,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Interval returns [StartTime, EndTime).
func (a *Appointment) Interval() interval.Interval {
	return interval.Interval{Start: a.StartTime, End: a.EndTime}
}

// Duration returns the appointment length.
func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// OverlapsWith reports whether two appointments share any instant.
func (a *Appointment) OverlapsWith(other *Appointment) bool {
	return interval.Overlaps(a.Interval(), other.Interval())
}

// BlockingIntervals returns the intervals of appointments that block new bookings.
func BlockingIntervals(appts []Appointment) []interval.Interval {
	out := make([]interval.Interval, 0, len(appts))
	for i := range appts {
		if appts[i].Status.Blocks() {
			out = append(out, appts[i].Interval())
		}
	}
	return out
}
