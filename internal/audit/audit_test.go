package audit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salonbook/internal/events"
	"salonbook/internal/model"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []Entry
	cutoff  time.Time
}

func (m *memoryStore) InsertAuditEntry(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryStore) AuditEntries(_ context.Context, from, to time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if !e.OccurredAt.Before(from) && e.OccurredAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) DeleteAuditEntriesBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoff = before
	kept := m.entries[:0]
	var n int64
	for _, e := range m.entries {
		if e.OccurredAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

type mockAppointments struct {
	mock.Mock
}

func (m *mockAppointments) AppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Appointment), args.Error(1)
}

func TestRecorder_StoresBookingEvents(t *testing.T) {
	store := &memoryStore{}
	bus := events.NewEventBus()
	NewRecorder(store, zerolog.Nop()).Subscribe(bus)

	ev, err := events.New(events.BookingConfirmed, map[string]any{
		"appointment_id": "appt-1",
		"session_id":     "sess-1",
		"staff_id":       "anna",
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ev))

	ev, err = events.New(events.HoldReleased, map[string]any{"session_id": "sess-2", "staff_id": "bob"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ev))

	require.Len(t, store.entries, 2)
	got := store.entries[0]
	assert.Equal(t, events.BookingConfirmed, got.Type)
	assert.Equal(t, "appt-1", got.AppointmentID)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "anna", got.StaffID)
	assert.JSONEq(t, `{"appointment_id":"appt-1","session_id":"sess-1","staff_id":"anna"}`, got.Payload)
	assert.Empty(t, store.entries[1].AppointmentID)
}

func TestExportMonth_WritesBothSheets(t *testing.T) {
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memoryStore{entries: []Entry{
		{EventID: "e1", Type: events.HoldCreated, OccurredAt: jan.Add(13 * 24 * time.Hour), SessionID: "s1", Payload: "{}"},
		{EventID: "e2", Type: events.HoldCreated, OccurredAt: jan.AddDate(0, 1, 0), Payload: "{}"}, // February
	}}
	appts := new(mockAppointments)
	appts.On("AppointmentsBetween", mock.Anything, jan, jan.AddDate(0, 1, 0)).Return([]model.Appointment{{
		ID: "a1", StaffID: "anna", ServiceID: "cut",
		Customer:  model.Customer{Name: "Jane", Phone: "+100"},
		StartTime: time.Date(2026, 1, 14, 14, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 1, 14, 15, 0, 0, 0, time.UTC),
		Status:    model.StatusBooked, PriceMinor: 5000, FinalPriceMinor: 4000,
	}}, nil)

	svc := NewService(Config{}, store, appts, nil, zerolog.Nop())
	var buf bytes.Buffer
	require.NoError(t, svc.ExportMonth(context.Background(), &buf, jan.Add(20*24*time.Hour)))
	appts.AssertExpectations(t)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Appointments", "Events"}, f.GetSheetList())

	rows, err := f.GetRows("Appointments")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, appointmentColumns, rows[0])
	assert.Equal(t, "a1", rows[1][0])
	assert.Equal(t, "2026-01-14 14:00", rows[1][5])
	assert.Equal(t, "4000", rows[1][9])

	rows, err = f.GetRows("Events")
	require.NoError(t, err)
	require.Len(t, rows, 2, "february event is outside the month")
	assert.Equal(t, "s1", rows[1][2])
}

func TestRunExportAndCleanup(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 1, 0, 0, time.UTC)
	old := Entry{EventID: "old", Type: events.HoldCreated, OccurredAt: now.AddDate(0, 0, -40), Payload: "{}"}
	recent := Entry{EventID: "new", Type: events.HoldCreated, OccurredAt: now.AddDate(0, 0, -5), Payload: "{}"}
	store := &memoryStore{entries: []Entry{old, recent}}

	appts := new(mockAppointments)
	appts.On("AppointmentsBetween", mock.Anything, mock.Anything, mock.Anything).Return([]model.Appointment{}, nil)

	dir := t.TempDir()
	svc := NewService(Config{ExportDir: dir, RetentionDays: 30}, store, appts, nil, zerolog.Nop())
	svc.now = func() time.Time { return now }

	path, err := svc.RunExportAndCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "salonbook_2026-01.xlsx", GenerateFilename(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.FileExists(t, path)
	assert.Contains(t, path, "salonbook_2026-01.xlsx")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.Len(t, store.entries, 1)
	assert.Equal(t, "new", store.entries[0].EventID)
	assert.Equal(t, now.AddDate(0, 0, -30), store.cutoff)
}

func TestExportMonth_PropagatesLoadErrors(t *testing.T) {
	appts := new(mockAppointments)
	boom := errors.New("db down")
	appts.On("AppointmentsBetween", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	svc := NewService(Config{}, &memoryStore{}, appts, nil, zerolog.Nop())
	err := svc.ExportMonth(context.Background(), &bytes.Buffer{}, time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestNextFirstOfMonth(t *testing.T) {
	svc := NewService(Config{}, &memoryStore{}, new(mockAppointments), nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 12, 14, 9, 0, 0, 0, time.UTC) }
	assert.Equal(t, time.Date(2027, 1, 1, 0, 1, 0, 0, time.UTC), svc.nextFirstOfMonth())
}
