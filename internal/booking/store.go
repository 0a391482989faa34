package booking

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/events"
	"salonbook/internal/interval"
	"salonbook/internal/model"
	"salonbook/internal/reservation"
)

// AnyStaff selects "any available staff member" in listing and hold requests.
const AnyStaff = "any"

var (
	// ErrNotFound is returned for unknown or inactive staff and services.
	ErrNotFound = errors.New("not found")
	// ErrServiceNotOffered is returned when a staff member does not perform the service.
	ErrServiceNotOffered = errors.New("staff member does not offer this service")
	// ErrInvalidCustomer is returned when confirmation lacks contact details.
	ErrInvalidCustomer = errors.New("customer name and phone are required")
)

// Catalog reads services and staff.
type Catalog interface {
	Service(ctx context.Context, serviceID string) (*model.Service, error)
	Staff(ctx context.Context, staffID string) (*model.Staff, error)
	// StaffForService returns active staff qualified for serviceID in pool order.
	StaffForService(ctx context.Context, serviceID string) ([]model.Staff, error)
}

// AppointmentStore reads blocking appointments and stores new ones.
type AppointmentStore interface {
	BlockingAppointments(ctx context.Context, staffID string, from, to time.Time) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, appt *model.Appointment) error
}

// DiscountSource returns the configured discount rules in stable order.
type DiscountSource interface {
	DiscountRules(ctx context.Context) ([]model.DiscountRule, error)
}

// WindowResolver resolves a staff member's working window for a date.
type WindowResolver interface {
	Resolve(ctx context.Context, staffID string, date time.Time) (model.WorkingWindow, error)
}

// Ledger is the reservation ledger as seen by the engine.
type Ledger interface {
	Now() time.Time
	CreateHold(ctx context.Context, staffID, serviceID string, iv interval.Interval, sessionID string) (model.ReservationHold, error)
	Release(ctx context.Context, sessionID string) error
	Hold(ctx context.Context, sessionID string) (model.ReservationHold, error)
	ActiveHolds(ctx context.Context, staffID, excludeSession string) ([]model.ReservationHold, error)
	Confirm(ctx context.Context, sessionID string, persist reservation.PersistFunc) (*model.Appointment, error)
}

// Publisher receives domain events.
type Publisher interface {
	Publish(event events.Event) error
}
