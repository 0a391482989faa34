// Package booking is the engine facade: availability, slot listing with
// pricing, holds and confirmation.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salonbook/internal/discount"
	"salonbook/internal/events"
	"salonbook/internal/interval"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/reservation"
	"salonbook/internal/slots"
)

// Deps are the collaborators of Service.
type Deps struct {
	Catalog      Catalog
	Appointments AppointmentStore
	Discounts    DiscountSource
	Resolver     WindowResolver
	Ledger       Ledger
	Publisher    Publisher // optional
}

// Service implements the booking operations exposed to the request layer.
type Service struct {
	catalog     Catalog
	appts       AppointmentStore
	discounts   DiscountSource
	resolver    WindowResolver
	ledger      Ledger
	publisher   Publisher
	granularity time.Duration
	logger      zerolog.Logger
}

// NewService wires the engine. granularity <= 0 selects slots.DefaultGranularity.
func NewService(deps Deps, granularity time.Duration, logger zerolog.Logger) *Service {
	if granularity <= 0 {
		granularity = slots.DefaultGranularity
	}
	return &Service{
		catalog:     deps.Catalog,
		appts:       deps.Appointments,
		discounts:   deps.Discounts,
		resolver:    deps.Resolver,
		ledger:      deps.Ledger,
		publisher:   deps.Publisher,
		granularity: granularity,
		logger:      logger.With().Str("component", "booking").Logger(),
	}
}

// SlotOffer is one bookable start time with its staff member and price.
type SlotOffer struct {
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	StaffID string         `json:"staff_id"`
	Price   discount.Price `json:"price"`
}

// GetAvailability returns the working window of staffID on date.
func (s *Service) GetAvailability(ctx context.Context, staffID string, date time.Time) (model.WorkingWindow, error) {
	if _, err := s.activeStaff(ctx, staffID); err != nil {
		return model.WorkingWindow{}, err
	}
	return s.window(ctx, staffID, model.DateOf(date))
}

// ListSlots lists bookable times for serviceID on date. staffIDOrAny is a
// staff id or AnyStaff.
func (s *Service) ListSlots(ctx context.Context, staffIDOrAny, serviceID string, date time.Time) ([]SlotOffer, error) {
	return s.ListSlotsForSession(ctx, staffIDOrAny, serviceID, date, "")
}

// ListSlotsForSession is ListSlots where sessionID's own hold does not hide
// the slot it occupies.
func (s *Service) ListSlotsForSession(ctx context.Context, staffIDOrAny, serviceID string, date time.Time, sessionID string) ([]SlotOffer, error) {
	svc, err := s.activeService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	date = model.DateOf(date)
	now := s.ledger.Now()

	var offers []slots.Offer
	mode := "staff"
	if isAny(staffIDOrAny) {
		mode = "any"
		pool, err := s.catalog.StaffForService(ctx, serviceID)
		if err != nil {
			return nil, fmt.Errorf("load staff pool: %w", err)
		}
		candidates := make([]slots.Candidate, 0, len(pool))
		for i := range pool {
			c, err := s.candidate(ctx, pool[i].ID, date, sessionID)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, c)
		}
		offers = slots.GenerateAny(candidates, svc.Duration(), s.granularity, now)
	} else {
		if _, err := s.qualifiedStaff(ctx, staffIDOrAny, serviceID); err != nil {
			return nil, err
		}
		c, err := s.candidate(ctx, staffIDOrAny, date, sessionID)
		if err != nil {
			return nil, err
		}
		times := slots.Generate(slots.Input{
			Window:      c.Window,
			Duration:    svc.Duration(),
			Granularity: s.granularity,
			Now:         now,
			Busy:        c.Busy,
		})
		offers = make([]slots.Offer, len(times))
		for i, t := range times {
			offers[i] = slots.Offer{Start: t, End: t.Add(svc.Duration()), StaffID: staffIDOrAny}
		}
	}

	rules, err := s.discounts.DiscountRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load discounts: %w", err)
	}

	out := make([]SlotOffer, len(offers))
	for i, o := range offers {
		out[i] = SlotOffer{
			Start:   o.Start,
			End:     o.End,
			StaffID: o.StaffID,
			Price:   discount.PriceFor(rules, svc.PriceMinor, discount.QueryAt(serviceID, o.StaffID, o.Start)),
		}
	}
	metrics.IncSlotsListed(mode)
	return out, nil
}

// CreateHold reserves start for sessionID. With AnyStaff the first available
// staff member in pool order is chosen; if that member is taken in the
// meantime, assignment runs once more against fresh state.
func (s *Service) CreateHold(ctx context.Context, staffIDOrAny, serviceID string, start time.Time, sessionID string) (model.ReservationHold, error) {
	svc, err := s.activeService(ctx, serviceID)
	if err != nil {
		return model.ReservationHold{}, err
	}
	iv, err := interval.FromDuration(start, svc.Duration())
	if err != nil {
		return model.ReservationHold{}, fmt.Errorf("%w: %w", reservation.ErrInvalidHold, err)
	}

	var hold model.ReservationHold
	if isAny(staffIDOrAny) {
		hold, err = s.createHoldAny(ctx, serviceID, iv, sessionID)
	} else {
		hold, err = s.createHoldFor(ctx, staffIDOrAny, serviceID, iv, sessionID)
	}
	if err != nil {
		return model.ReservationHold{}, err
	}

	s.publish(events.HoldCreated, holdPayload(hold))
	return hold, nil
}

func (s *Service) createHoldFor(ctx context.Context, staffID, serviceID string, iv interval.Interval, sessionID string) (model.ReservationHold, error) {
	if _, err := s.qualifiedStaff(ctx, staffID, serviceID); err != nil {
		return model.ReservationHold{}, err
	}

	window, err := s.window(ctx, staffID, model.DateOf(iv.Start))
	if err != nil {
		return model.ReservationHold{}, err
	}
	if !window.Permits(iv) || !iv.Start.After(s.ledger.Now()) || !slots.OnGrid(window.StartAt(), iv.Start, s.granularity) {
		return model.ReservationHold{}, &reservation.ConflictError{StaffID: staffID, Interval: iv, Reason: reservation.ReasonUnavailable}
	}
	return s.ledger.CreateHold(ctx, staffID, serviceID, iv, sessionID)
}

func (s *Service) createHoldAny(ctx context.Context, serviceID string, iv interval.Interval, sessionID string) (model.ReservationHold, error) {
	pool, err := s.catalog.StaffForService(ctx, serviceID)
	if err != nil {
		return model.ReservationHold{}, fmt.Errorf("load staff pool: %w", err)
	}
	origin, ok, err := s.gridOrigin(ctx, pool, model.DateOf(iv.Start))
	if err != nil {
		return model.ReservationHold{}, err
	}
	if !ok || !slots.OnGrid(origin, iv.Start, s.granularity) {
		return model.ReservationHold{}, &reservation.ConflictError{StaffID: AnyStaff, Interval: iv, Reason: reservation.ReasonUnavailable}
	}

	const attempts = 2
	var lastErr error
	for i := 0; i < attempts; i++ {
		staffID, ok, err := s.FindAvailableStaff(ctx, iv.Start, iv.Duration(), pool, sessionID)
		if err != nil {
			return model.ReservationHold{}, err
		}
		if !ok {
			return model.ReservationHold{}, &reservation.ConflictError{StaffID: AnyStaff, Interval: iv, Reason: reservation.ReasonUnavailable}
		}

		hold, err := s.ledger.CreateHold(ctx, staffID, serviceID, iv, sessionID)
		if err == nil {
			return hold, nil
		}
		if !reservation.IsConflict(err) {
			return model.ReservationHold{}, err
		}
		s.logger.Debug().Str("staff_id", staffID).Time("start", iv.Start).Msg("assigned staff taken, reassigning")
		lastErr = err
	}
	return model.ReservationHold{}, lastErr
}

// ReleaseHold drops the session's hold. It never fails for a missing hold.
func (s *Service) ReleaseHold(ctx context.Context, sessionID string) error {
	h, err := s.ledger.Hold(ctx, sessionID)
	existed := err == nil || reservation.IsExpiredHold(err)

	if err := s.ledger.Release(ctx, sessionID); err != nil {
		return err
	}
	if existed {
		s.publish(events.HoldReleased, holdPayload(h))
	}
	return nil
}

// ConfirmBooking turns the session's hold into an appointment. The price is
// resolved again at this point so a discount that ended in the meantime is
// not honoured.
func (s *Service) ConfirmBooking(ctx context.Context, sessionID string, customer model.Customer) (*model.Appointment, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	if customer.Name == "" || customer.Phone == "" {
		return nil, ErrInvalidCustomer
	}

	appt, err := s.ledger.Confirm(ctx, sessionID, func(ctx context.Context, h model.ReservationHold) (*model.Appointment, error) {
		return s.persist(ctx, h, customer)
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.BookingConfirmed, bookingPayload{
		AppointmentID: appt.ID,
		SessionID:     sessionID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		Start:         appt.StartTime,
		End:           appt.EndTime,
		FinalPrice:    appt.FinalPriceMinor,
	})
	return appt, nil
}

func (s *Service) persist(ctx context.Context, h model.ReservationHold, customer model.Customer) (*model.Appointment, error) {
	svc, err := s.catalog.Service(ctx, h.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("load service %s: %w", h.ServiceID, err)
	}
	rules, err := s.discounts.DiscountRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load discounts: %w", err)
	}
	price := discount.PriceFor(rules, svc.PriceMinor, discount.QueryAt(h.ServiceID, h.StaffID, h.StartTime))

	now := s.ledger.Now()
	appt := &model.Appointment{
		ID:              uuid.NewString(),
		StaffID:         h.StaffID,
		ServiceID:       h.ServiceID,
		SessionID:       h.SessionID,
		Customer:        customer,
		StartTime:       h.StartTime,
		EndTime:         h.EndTime,
		Status:          model.StatusBooked,
		PriceMinor:      price.OriginalMinor,
		FinalPriceMinor: price.FinalMinor,
		DiscountID:      price.DiscountID,
		DiscountPercent: price.DiscountPercent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.appts.CreateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) activeService(ctx context.Context, serviceID string) (*model.Service, error) {
	svc, err := s.catalog.Service(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive || svc.DurationMinutes <= 0 {
		return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
	}
	return svc, nil
}

func (s *Service) activeStaff(ctx context.Context, staffID string) (*model.Staff, error) {
	st, err := s.catalog.Staff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if !st.IsActive {
		return nil, fmt.Errorf("staff %s: %w", staffID, ErrNotFound)
	}
	return st, nil
}

func (s *Service) qualifiedStaff(ctx context.Context, staffID, serviceID string) (*model.Staff, error) {
	st, err := s.activeStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if !st.Offers(serviceID) {
		return nil, fmt.Errorf("%s / %s: %w", staffID, serviceID, ErrServiceNotOffered)
	}
	return st, nil
}

func isAny(staffID string) bool {
	return staffID == "" || strings.EqualFold(staffID, AnyStaff)
}

type holdEventPayload struct {
	HoldID    string    `json:"hold_id"`
	SessionID string    `json:"session_id"`
	StaffID   string    `json:"staff_id"`
	ServiceID string    `json:"service_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	ExpiresAt time.Time `json:"expires_at"`
}

func holdPayload(h model.ReservationHold) holdEventPayload {
	return holdEventPayload{
		HoldID:    h.ID,
		SessionID: h.SessionID,
		StaffID:   h.StaffID,
		ServiceID: h.ServiceID,
		Start:     h.StartTime,
		End:       h.EndTime,
		ExpiresAt: h.ExpiresAt,
	}
}

type bookingPayload struct {
	AppointmentID string    `json:"appointment_id"`
	SessionID     string    `json:"session_id"`
	StaffID       string    `json:"staff_id"`
	ServiceID     string    `json:"service_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	FinalPrice    int64     `json:"final_price_minor"`
}

func (s *Service) publish(eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	ev, err := events.New(eventType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to build event")
		return
	}
	if err := s.publisher.Publish(ev); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}
