package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/model"
	"salonbook/internal/slots"
)

// FindAvailableStaff returns the first staff member of pool, in pool order,
// who can take [start, start+duration): inside the resolved window, clear of
// blocking appointments and of other sessions' active holds.
func (s *Service) FindAvailableStaff(ctx context.Context, start time.Time, duration time.Duration, pool []model.Staff, sessionID string) (string, bool, error) {
	date := model.DateOf(start)
	now := s.ledger.Now()

	for i := range pool {
		c, err := s.candidate(ctx, pool[i].ID, date, sessionID)
		if err != nil {
			return "", false, err
		}
		if slots.Fits(c.Window, start, duration, c.Busy, now) {
			return pool[i].ID, true, nil
		}
	}
	return "", false, nil
}

// window resolves staffID's working window for date. A configuration gap
// that the resolver could not recover from makes the staff member
// unavailable instead of failing the request.
func (s *Service) window(ctx context.Context, staffID string, date time.Time) (model.WorkingWindow, error) {
	window, err := s.resolver.Resolve(ctx, staffID, date)
	if err == nil {
		return window, nil
	}
	var gap *availability.ConfigurationGapError
	if !errors.As(err, &gap) {
		return model.WorkingWindow{}, fmt.Errorf("resolve window for %s: %w", staffID, err)
	}
	s.logger.Warn().Err(err).Str("staff_id", staffID).Msg("staff unavailable: no schedule")
	return model.WorkingWindow{StaffID: staffID, Date: model.DateOf(date)}, nil
}

// gridOrigin is the first time the any-staff listing steps from on date.
func (s *Service) gridOrigin(ctx context.Context, pool []model.Staff, date time.Time) (time.Time, bool, error) {
	candidates := make([]slots.Candidate, 0, len(pool))
	for i := range pool {
		w, err := s.window(ctx, pool[i].ID, date)
		if err != nil {
			return time.Time{}, false, err
		}
		candidates = append(candidates, slots.Candidate{StaffID: pool[i].ID, Window: w})
	}
	origin, ok := slots.GridOrigin(candidates)
	return origin, ok, nil
}

// candidate collects one staff member's window and busy intervals for date.
func (s *Service) candidate(ctx context.Context, staffID string, date time.Time, excludeSession string) (slots.Candidate, error) {
	window, err := s.window(ctx, staffID, date)
	if err != nil {
		return slots.Candidate{}, err
	}

	c := slots.Candidate{StaffID: staffID, Window: window}
	if !window.Available {
		return c, nil
	}

	appts, err := s.appts.BlockingAppointments(ctx, staffID, window.StartAt(), window.EndAt())
	if err != nil {
		return slots.Candidate{}, fmt.Errorf("load appointments for %s: %w", staffID, err)
	}
	holds, err := s.ledger.ActiveHolds(ctx, staffID, excludeSession)
	if err != nil {
		return slots.Candidate{}, fmt.Errorf("load holds for %s: %w", staffID, err)
	}

	c.Busy = model.BlockingIntervals(appts)
	for i := range holds {
		c.Busy = append(c.Busy, holds[i].Interval())
	}
	return c, nil
}
