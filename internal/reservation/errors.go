package reservation

import (
	"errors"
	"fmt"
	"time"

	"salonbook/internal/interval"
)

var (
	// ErrHoldNotFound is returned when a session has no hold to act on.
	ErrHoldNotFound = errors.New("no reservation hold for session")
	// ErrInvalidHold is returned for malformed hold requests.
	ErrInvalidHold = errors.New("invalid hold request")
)

// Conflict reasons.
const (
	ReasonHeld        = "held"
	ReasonBooked      = "booked"
	ReasonUnavailable = "unavailable" // outside working hours or already past
)

// ConflictError means the requested interval is already taken by another
// session's hold or by a blocking appointment.
type ConflictError struct {
	StaffID  string
	Interval interval.Interval
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s for staff %s is not available (%s)", e.Interval, e.StaffID, e.Reason)
}

// ExpiredHoldError means the session's hold passed its expiry before confirmation.
type ExpiredHoldError struct {
	SessionID string
	ExpiresAt time.Time
}

func (e *ExpiredHoldError) Error() string {
	return fmt.Sprintf("reservation for session %s expired at %s", e.SessionID, e.ExpiresAt.Format(time.RFC3339))
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsExpiredHold reports whether err is or wraps an *ExpiredHoldError.
func IsExpiredHold(err error) bool {
	var ee *ExpiredHoldError
	return errors.As(err, &ee)
}
