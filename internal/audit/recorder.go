package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/events"
)

// Recorder stores every booking event it receives.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.With().Str("component", "audit").Logger()}
}

// Subscribe attaches the recorder to every booking event type on bus.
func (r *Recorder) Subscribe(bus *events.EventBus) {
	for _, t := range []string{events.HoldCreated, events.HoldReleased, events.BookingConfirmed} {
		bus.Subscribe(t, r.Handle)
	}
}

// Handle records one event.
func (r *Recorder) Handle(e events.Event) error {
	var ids struct {
		SessionID     string `json:"session_id"`
		StaffID       string `json:"staff_id"`
		AppointmentID string `json:"appointment_id"`
	}
	if err := e.Decode(&ids); err != nil {
		r.logger.Warn().Err(err).Str("event", e.Type).Msg("event payload is not an object")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.store.InsertAuditEntry(ctx, Entry{
		EventID:       e.ID,
		Type:          e.Type,
		OccurredAt:    e.CreatedAt,
		SessionID:     ids.SessionID,
		StaffID:       ids.StaffID,
		AppointmentID: ids.AppointmentID,
		Payload:       string(e.Payload),
	})
}
