package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/booking"
	"salonbook/internal/interval"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/reservation"
)

const (
	msgConflict = "slot no longer available, please pick again"
	msgExpired  = "reservation expired"
)

// AvailabilityResponse is the working window of one staff member on one date.
type AvailabilityResponse struct {
	StaffID   string              `json:"staff_id"`
	Date      string              `json:"date"`
	Available bool                `json:"available"`
	Start     string              `json:"start,omitempty"`
	End       string              `json:"end,omitempty"`
	Excluded  []interval.Interval `json:"excluded,omitempty"`
	Fallback  bool                `json:"fallback,omitempty"`
}

// SlotResponse is one bookable start time.
type SlotResponse struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	StaffID         string    `json:"staff_id"`
	PriceMinor      int64     `json:"price_minor"`
	FinalPriceMinor int64     `json:"final_price_minor"`
	DiscountID      string    `json:"discount_id,omitempty"`
	DiscountName    string    `json:"discount_name,omitempty"`
	DiscountPercent float64   `json:"discount_percent,omitempty"`
}

// SlotsResponse is the response for GET /api/v1/slots.
type SlotsResponse struct {
	Date      string         `json:"date"`
	ServiceID string         `json:"service_id"`
	Staff     string         `json:"staff"`
	Slots     []SlotResponse `json:"slots"`
}

// CreateHoldRequest is the request body for POST /api/v1/holds.
type CreateHoldRequest struct {
	Staff     string `json:"staff"` // staff id or "any"
	ServiceID string `json:"service_id"`
	Start     string `json:"start"` // RFC3339, or "YYYY-MM-DDTHH:MM" in salon time
}

// ConfirmBookingRequest is the request body for POST /api/v1/bookings.
type ConfirmBookingRequest struct {
	Customer model.Customer `json:"customer"`
}

// handleAvailability returns the resolved working window.
// GET /api/v1/staff/{staff}/availability?date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	date, ok := s.parseDateParam(w, r)
	if !ok {
		return
	}

	win, err := s.booking.GetAvailability(r.Context(), r.PathValue("staff"), date)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := AvailabilityResponse{
		StaffID:   win.StaffID,
		Date:      date.Format(model.DateLayout),
		Available: win.Available,
		Fallback:  win.Fallback,
	}
	if win.Available {
		resp.Start = win.Start.String()
		resp.End = win.End.String()
		resp.Excluded = win.Excluded
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSlots lists bookable start times with prices.
// GET /api/v1/slots?staff=<id>|any&service=<id>&date=YYYY-MM-DD
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	q := r.URL.Query()
	serviceID := q.Get("service")
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}
	staff := q.Get("staff")
	if staff == "" {
		staff = booking.AnyStaff
	}
	date, ok := s.parseDateParam(w, r)
	if !ok {
		return
	}

	offers, err := s.booking.ListSlotsForSession(r.Context(), staff, serviceID, date, r.Header.Get(SessionHeader))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := SlotsResponse{
		Date:      date.Format(model.DateLayout),
		ServiceID: serviceID,
		Staff:     staff,
		Slots:     make([]SlotResponse, len(offers)),
	}
	for i, o := range offers {
		resp.Slots[i] = SlotResponse{
			Start:           o.Start,
			End:             o.End,
			StaffID:         o.StaffID,
			PriceMinor:      o.Price.OriginalMinor,
			FinalPriceMinor: o.Price.FinalMinor,
			DiscountID:      o.Price.DiscountID,
			DiscountName:    o.Price.DiscountName,
			DiscountPercent: o.Price.DiscountPercent,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateHold reserves a slot for the calling session.
// POST /api/v1/holds
func (s *HTTPServer) handleCreateHold(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_hold")

	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req CreateHoldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ServiceID == "" || req.Start == "" {
		writeError(w, http.StatusBadRequest, "service_id and start are required")
		return
	}
	if req.Staff == "" {
		req.Staff = booking.AnyStaff
	}
	start, err := s.parseStart(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected RFC3339 or YYYY-MM-DDTHH:MM")
		return
	}

	hold, err := s.booking.CreateHold(r.Context(), req.Staff, req.ServiceID, start, sessionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hold)
}

// handleReleaseHold drops the caller's own hold. Releasing twice is not an error.
// DELETE /api/v1/holds/{session}
func (s *HTTPServer) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("release_hold")

	caller, ok := requireSession(w, r)
	if !ok {
		return
	}
	sessionID := r.PathValue("session")
	if caller != sessionID {
		writeError(w, http.StatusForbidden, "session mismatch")
		return
	}
	if err := s.booking.ReleaseHold(r.Context(), sessionID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConfirmBooking turns the session's hold into an appointment.
// POST /api/v1/bookings
func (s *HTTPServer) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("confirm_booking")

	sessionID, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req ConfirmBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	appt, err := s.booking.ConfirmBooking(r.Context(), sessionID, req.Customer)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// writeDomainError maps engine errors to HTTP statuses.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case reservation.IsConflict(err):
		writeError(w, http.StatusConflict, msgConflict)
	case reservation.IsExpiredHold(err):
		writeError(w, http.StatusGone, msgExpired)
	case errors.Is(err, reservation.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrServiceNotOffered),
		errors.Is(err, booking.ErrInvalidCustomer),
		errors.Is(err, reservation.ErrInvalidHold):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return time.Time{}, false
	}
	date, err := model.ParseDate(raw, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (s *HTTPServer) parseStart(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(s.loc), nil
	}
	return time.ParseInLocation("2006-01-02T15:04", raw, s.loc)
}

func requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		writeError(w, http.StatusBadRequest, SessionHeader+" header is required")
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
