package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/booking"
	"salonbook/internal/model"
)

func zerologNop() zerolog.Logger { return zerolog.Nop() }

func at(hour, min int) time.Time {
	return wednesday.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func appointment(staffID string, start, end time.Time, status model.AppointmentStatus) *model.Appointment {
	return &model.Appointment{
		ID:              uuid.NewString(),
		StaffID:         staffID,
		ServiceID:       "cut",
		Customer:        model.Customer{Name: "Jane", Phone: "+100"},
		StartTime:       start,
		EndTime:         end,
		Status:          status,
		PriceMinor:      5000,
		FinalPriceMinor: 4000,
		DiscountID:      "afternoon",
		DiscountPercent: 20,
	}
}

func TestCreateAndGetAppointment(t *testing.T) {
	db := syncedDB(t)
	ctx := context.Background()

	a := appointment("anna", at(14, 0), at(15, 0), "")
	a.SessionID = "sess-1"
	require.NoError(t, db.CreateAppointment(ctx, a))
	assert.Equal(t, model.StatusBooked, a.Status, "status defaults to booked")

	got, err := db.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "anna", got.StaffID)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "Jane", got.Customer.Name)
	assert.Empty(t, got.Customer.Email)
	assert.True(t, got.StartTime.Equal(at(14, 0)))
	assert.True(t, got.EndTime.Equal(at(15, 0)))
	assert.Equal(t, int64(4000), got.FinalPriceMinor)
	assert.Equal(t, "afternoon", got.DiscountID)
	assert.Equal(t, 20.0, got.DiscountPercent)

	_, err = db.GetAppointment(ctx, "missing")
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestCreateAppointment_RejectsUnknownStatus(t *testing.T) {
	db := syncedDB(t)
	err := db.CreateAppointment(context.Background(), appointment("anna", at(14, 0), at(15, 0), "maybe"))
	assert.Error(t, err)
}

func TestBlockingAppointments(t *testing.T) {
	db := syncedDB(t)
	ctx := context.Background()

	inside := appointment("anna", at(14, 0), at(15, 0), model.StatusBooked)
	confirmed := appointment("anna", at(16, 0), at(17, 0), model.StatusConfirmed)
	cancelled := appointment("anna", at(11, 0), at(12, 0), model.StatusCancelled)
	completed := appointment("anna", at(10, 0), at(11, 0), model.StatusCompleted)
	other := appointment("bob", at(14, 0), at(15, 0), model.StatusBooked)
	tomorrow := appointment("anna", at(24+14, 0), at(24+15, 0), model.StatusBooked)
	for _, a := range []*model.Appointment{inside, confirmed, cancelled, completed, other, tomorrow} {
		require.NoError(t, db.CreateAppointment(ctx, a))
	}

	got, err := db.BlockingAppointments(ctx, "anna", at(0, 0), at(24, 0))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, inside.ID, got[0].ID)
	assert.Equal(t, confirmed.ID, got[1].ID)

	// Touching endpoints do not overlap.
	got, err = db.BlockingAppointments(ctx, "anna", at(15, 0), at(16, 0))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = db.BlockingAppointments(ctx, "anna", at(14, 59), at(15, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inside.ID, got[0].ID)

	all, err := db.ListAppointments(ctx, "anna", at(0, 0), at(24, 0))
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateAppointmentStatus(t *testing.T) {
	db := syncedDB(t)
	ctx := context.Background()

	a := appointment("anna", at(14, 0), at(15, 0), model.StatusBooked)
	require.NoError(t, db.CreateAppointment(ctx, a))

	require.NoError(t, db.UpdateAppointmentStatus(ctx, a.ID, model.StatusCancelled))
	got, err := db.BlockingAppointments(ctx, "anna", at(14, 0), at(15, 0))
	require.NoError(t, err)
	assert.Empty(t, got, "cancelled appointments free the slot")

	assert.ErrorIs(t, db.UpdateAppointmentStatus(ctx, "missing", model.StatusCancelled), booking.ErrNotFound)
	assert.Error(t, db.UpdateAppointmentStatus(ctx, a.ID, "unknown"))
}

func TestAppointments_LocalTimesCompareInUTC(t *testing.T) {
	db := syncedDB(t)
	ctx := context.Background()
	loc := time.FixedZone("UTC+3", 3*3600)

	// 17:00 local is 14:00 UTC.
	a := appointment("anna", at(14, 0).In(loc), at(15, 0).In(loc), model.StatusBooked)
	require.NoError(t, db.CreateAppointment(ctx, a))

	got, err := db.BlockingAppointments(ctx, "anna", time.Date(2026, 1, 14, 17, 30, 0, 0, loc), time.Date(2026, 1, 14, 18, 30, 0, 0, loc))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
