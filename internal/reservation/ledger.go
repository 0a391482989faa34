// Package reservation implements the hold ledger: short-lived, per-session
// claims on a staff member's time that keep two customers from checking out
// the same slot.
package reservation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salonbook/internal/interval"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
)

// DefaultTTL is how long a hold lives after creation.
const DefaultTTL = 10 * time.Minute

// AppointmentSource returns blocking appointments of a staff member that
// overlap [from, to).
type AppointmentSource interface {
	BlockingAppointments(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error)
}

// PersistFunc turns a validated hold into a stored appointment.
type PersistFunc func(ctx context.Context, hold model.ReservationHold) (*model.Appointment, error)

// Option configures a Ledger.
type Option func(*Ledger)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger owns every hold mutation. Mutations touching one staff member are
// serialized through the Locker.
type Ledger struct {
	store  HoldStore
	locker Locker
	appts  AppointmentSource
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewLedger creates a ledger.
func NewLedger(store HoldStore, locker Locker, appts AppointmentSource, logger zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		locker: locker,
		appts:  appts,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger.With().Str("component", "reservation").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the ledger's clock reading.
func (l *Ledger) Now() time.Time { return l.now() }

// TTL returns the hold lifetime.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// IsExpired reports whether hold is no longer active at now.
func IsExpired(hold model.ReservationHold, now time.Time) bool {
	return hold.ExpiredAt(now)
}

// CreateHold claims iv on staffID for sessionID, replacing any hold the
// session already has. ExpiresAt is always reset to now+TTL.
func (l *Ledger) CreateHold(ctx context.Context, staffID, serviceID string, iv interval.Interval, sessionID string) (model.ReservationHold, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(staffID) == "" {
		return model.ReservationHold{}, fmt.Errorf("%w: staff and session are required", ErrInvalidHold)
	}
	if !iv.Start.Before(iv.End) {
		return model.ReservationHold{}, fmt.Errorf("%w: %w", ErrInvalidHold, interval.ErrInvalidInterval)
	}

	unlock, err := l.locker.Lock(ctx, staffID)
	if err != nil {
		metrics.IncHoldCreated("error")
		return model.ReservationHold{}, fmt.Errorf("lock staff %s: %w", staffID, err)
	}
	defer unlock()

	now := l.now()
	if err := l.checkFree(ctx, staffID, iv, sessionID, now); err != nil {
		if IsConflict(err) {
			metrics.IncHoldCreated("conflict")
		} else {
			metrics.IncHoldCreated("error")
		}
		return model.ReservationHold{}, err
	}

	hold := model.ReservationHold{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		ServiceID: serviceID,
		SessionID: sessionID,
		StartTime: iv.Start,
		EndTime:   iv.End,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}
	if err := l.store.Put(ctx, hold); err != nil {
		metrics.IncHoldCreated("error")
		return model.ReservationHold{}, fmt.Errorf("store hold: %w", err)
	}

	metrics.IncHoldCreated("ok")
	l.logger.Debug().
		Str("staff_id", staffID).
		Str("session_id", sessionID).
		Time("start", iv.Start).
		Time("expires_at", hold.ExpiresAt).
		Msg("hold created")
	return hold, nil
}

// Release drops the session's hold. Releasing a missing hold is not an error.
func (l *Ledger) Release(ctx context.Context, sessionID string) error {
	h, err := l.store.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("release hold: %w", err)
	}
	if h != nil {
		metrics.IncHoldReleased()
		l.logger.Debug().Str("staff_id", h.StaffID).Str("session_id", sessionID).Msg("hold released")
	}
	return nil
}

// Hold returns the session's active hold, ErrHoldNotFound if it has none or
// *ExpiredHoldError if it has lapsed.
func (l *Ledger) Hold(ctx context.Context, sessionID string) (model.ReservationHold, error) {
	h, err := l.store.BySession(ctx, sessionID)
	if err != nil {
		return model.ReservationHold{}, fmt.Errorf("load hold: %w", err)
	}
	if h == nil {
		return model.ReservationHold{}, ErrHoldNotFound
	}
	if h.ExpiredAt(l.now()) {
		return *h, &ExpiredHoldError{SessionID: sessionID, ExpiresAt: h.ExpiresAt}
	}
	return *h, nil
}

// ActiveHolds returns the staff member's unexpired holds, skipping
// excludeSession when it is non-empty.
func (l *Ledger) ActiveHolds(ctx context.Context, staffID, excludeSession string) ([]model.ReservationHold, error) {
	holds, err := l.store.ByStaff(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	now := l.now()
	out := holds[:0]
	for _, h := range holds {
		if h.ExpiredAt(now) || (excludeSession != "" && h.SessionID == excludeSession) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Confirm converts the session's hold into an appointment. The hold is
// re-validated under the staff lock; persist runs while the lock is held and
// the hold is removed only if persist succeeds.
func (l *Ledger) Confirm(ctx context.Context, sessionID string, persist PersistFunc) (*model.Appointment, error) {
	const attempts = 3

	for i := 0; i < attempts; i++ {
		h, err := l.store.BySession(ctx, sessionID)
		if err != nil {
			metrics.IncBookingConfirmed("error")
			return nil, fmt.Errorf("load hold: %w", err)
		}
		if h == nil {
			metrics.IncBookingConfirmed("missing")
			return nil, ErrHoldNotFound
		}

		appt, retry, err := l.confirmLocked(ctx, sessionID, h.StaffID, persist)
		if retry {
			continue // hold moved to another staff member meanwhile
		}
		return appt, err
	}

	metrics.IncBookingConfirmed("conflict")
	return nil, fmt.Errorf("confirm session %s: hold kept changing", sessionID)
}

func (l *Ledger) confirmLocked(ctx context.Context, sessionID, staffID string, persist PersistFunc) (*model.Appointment, bool, error) {
	unlock, err := l.locker.Lock(ctx, staffID)
	if err != nil {
		metrics.IncBookingConfirmed("error")
		return nil, false, fmt.Errorf("lock staff %s: %w", staffID, err)
	}
	defer unlock()

	h, err := l.store.BySession(ctx, sessionID)
	if err != nil {
		metrics.IncBookingConfirmed("error")
		return nil, false, fmt.Errorf("load hold: %w", err)
	}
	if h == nil {
		metrics.IncBookingConfirmed("missing")
		return nil, false, ErrHoldNotFound
	}
	if h.StaffID != staffID {
		return nil, true, nil
	}

	now := l.now()
	if h.ExpiredAt(now) {
		if _, err := l.store.Delete(ctx, sessionID); err != nil {
			l.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to drop expired hold")
		}
		metrics.IncBookingConfirmed("expired")
		return nil, false, &ExpiredHoldError{SessionID: sessionID, ExpiresAt: h.ExpiresAt}
	}

	if err := l.checkAppointments(ctx, staffID, h.Interval()); err != nil {
		if IsConflict(err) {
			metrics.IncBookingConfirmed("conflict")
		} else {
			metrics.IncBookingConfirmed("error")
		}
		return nil, false, err
	}

	appt, err := persist(ctx, *h)
	if err != nil {
		metrics.IncBookingConfirmed("error")
		return nil, false, err
	}

	if _, err := l.store.Delete(ctx, sessionID); err != nil {
		l.logger.Warn().Err(err).Str("session_id", sessionID).Msg("booking stored but hold not released")
	}
	metrics.IncBookingConfirmed("ok")
	l.logger.Info().
		Str("staff_id", staffID).
		Str("session_id", sessionID).
		Time("start", h.StartTime).
		Msg("booking confirmed")
	return appt, false, nil
}

// Purge removes holds that have expired. It is housekeeping only: expired
// holds never block anything.
func (l *Ledger) Purge(ctx context.Context) (int, error) {
	n, err := l.store.PurgeExpired(ctx, l.now())
	if err != nil {
		return n, fmt.Errorf("purge holds: %w", err)
	}
	if n > 0 {
		metrics.AddHoldsPurged(n)
	}
	return n, nil
}

func (l *Ledger) checkFree(ctx context.Context, staffID string, iv interval.Interval, sessionID string, now time.Time) error {
	holds, err := l.store.ByStaff(ctx, staffID)
	if err != nil {
		return fmt.Errorf("list holds: %w", err)
	}
	for i := range holds {
		h := &holds[i]
		if h.SessionID == sessionID || h.ExpiredAt(now) {
			continue
		}
		if interval.Overlaps(iv, h.Interval()) {
			return &ConflictError{StaffID: staffID, Interval: iv, Reason: ReasonHeld}
		}
	}
	return l.checkAppointments(ctx, staffID, iv)
}

func (l *Ledger) checkAppointments(ctx context.Context, staffID string, iv interval.Interval) error {
	if l.appts == nil {
		return nil
	}
	appts, err := l.appts.BlockingAppointments(ctx, staffID, iv.Start, iv.End)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	if interval.OverlapsAny(iv, model.BlockingIntervals(appts)) {
		return &ConflictError{StaffID: staffID, Interval: iv, Reason: ReasonBooked}
	}
	return nil
}
