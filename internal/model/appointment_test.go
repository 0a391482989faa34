package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestAppointment_Duration(t *testing.T) {
	a := Appointment{
		StartTime: datetime(2026, 1, 14, 10, 0),
		EndTime:   datetime(2026, 1, 14, 11, 30),
	}
	assert.Equal(t, 90*time.Minute, a.Duration())
}

func TestAppointment_OverlapsWith(t *testing.T) {
	existing := Appointment{
		StartTime: datetime(2026, 1, 14, 14, 0),
		EndTime:   datetime(2026, 1, 14, 15, 0),
	}

	// Touching at 14:00 is not an overlap
	before := Appointment{
		StartTime: datetime(2026, 1, 14, 13, 0),
		EndTime:   datetime(2026, 1, 14, 14, 0),
	}
	assert.False(t, existing.OverlapsWith(&before))

	during := Appointment{
		StartTime: datetime(2026, 1, 14, 13, 30),
		EndTime:   datetime(2026, 1, 14, 14, 30),
	}
	assert.True(t, existing.OverlapsWith(&during))
}

func TestAppointmentStatus_Blocks(t *testing.T) {
	assert.True(t, StatusBooked.Blocks())
	assert.True(t, StatusConfirmed.Blocks())
	assert.False(t, StatusCompleted.Blocks())
	assert.False(t, StatusCancelled.Blocks())
	assert.False(t, StatusNoShow.Blocks())

	assert.True(t, StatusNoShow.Valid())
	assert.False(t, AppointmentStatus("pending").Valid())
}

func TestBlockingIntervals_SkipsCancelledAndNoShow(t *testing.T) {
	appts := []Appointment{
		{StartTime: datetime(2026, 1, 14, 10, 0), EndTime: datetime(2026, 1, 14, 11, 0), Status: StatusBooked},
		{StartTime: datetime(2026, 1, 14, 11, 0), EndTime: datetime(2026, 1, 14, 12, 0), Status: StatusCancelled},
		{StartTime: datetime(2026, 1, 14, 12, 0), EndTime: datetime(2026, 1, 14, 13, 0), Status: StatusNoShow},
		{StartTime: datetime(2026, 1, 14, 13, 0), EndTime: datetime(2026, 1, 14, 14, 0), Status: StatusConfirmed},
	}

	got := BlockingIntervals(appts)
	assert.Len(t, got, 2)
	assert.Equal(t, datetime(2026, 1, 14, 10, 0), got[0].Start)
	assert.Equal(t, datetime(2026, 1, 14, 13, 0), got[1].Start)
}

func TestReservationHold_ExpiredAt(t *testing.T) {
	created := datetime(2026, 1, 14, 10, 0)
	h := ReservationHold{CreatedAt: created, ExpiresAt: created.Add(10 * time.Minute)}

	assert.False(t, h.ExpiredAt(created.Add(9*time.Minute)))
	assert.False(t, h.ExpiredAt(created.Add(10*time.Minute-time.Nanosecond)))
	assert.True(t, h.ExpiredAt(created.Add(10*time.Minute)))
	assert.True(t, h.ExpiredAt(created.Add(11*time.Minute)))
}

func TestActiveIntervals(t *testing.T) {
	now := datetime(2026, 1, 14, 9, 0)
	holds := []ReservationHold{
		{SessionID: "a", StartTime: datetime(2026, 1, 14, 10, 0), EndTime: datetime(2026, 1, 14, 11, 0), ExpiresAt: now.Add(time.Minute)},
		{SessionID: "b", StartTime: datetime(2026, 1, 14, 12, 0), EndTime: datetime(2026, 1, 14, 13, 0), ExpiresAt: now},
		{SessionID: "c", StartTime: datetime(2026, 1, 14, 15, 0), EndTime: datetime(2026, 1, 14, 16, 0), ExpiresAt: now.Add(time.Hour)},
	}

	got := ActiveIntervals(holds, now, "c")
	assert.Len(t, got, 1)
	assert.Equal(t, datetime(2026, 1, 14, 10, 0), got[0].Start)
}

func TestStaff_Offers(t *testing.T) {
	s := Staff{ID: "anna", ServiceIDs: []string{"cut", "color"}}
	assert.True(t, s.Offers("color"))
	assert.False(t, s.Offers("nails"))
}
