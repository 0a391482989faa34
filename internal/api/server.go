// Package api exposes the booking engine over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salonbook/internal/booking"
	"salonbook/internal/model"
)

// SessionHeader carries the booking session id.
const SessionHeader = "X-Session-ID"

// BookingService is the engine surface used by the handlers.
type BookingService interface {
	GetAvailability(ctx context.Context, staffID string, date time.Time) (model.WorkingWindow, error)
	ListSlotsForSession(ctx context.Context, staffIDOrAny, serviceID string, date time.Time, sessionID string) ([]booking.SlotOffer, error)
	CreateHold(ctx context.Context, staffIDOrAny, serviceID string, start time.Time, sessionID string) (model.ReservationHold, error)
	ReleaseHold(ctx context.Context, sessionID string) error
	ConfirmBooking(ctx context.Context, sessionID string, customer model.Customer) (*model.Appointment, error)
}

// RateLimit configures the per-client limiter on write routes.
type RateLimit struct {
	RPS   float64
	Burst int
}

// HTTPServer serves the public booking API.
type HTTPServer struct {
	booking BookingService
	loc     *time.Location
	limiter *clientLimiter
	logger  zerolog.Logger
	server  *http.Server
}

// NewHTTPServer builds the server; dates without a zone are read in loc.
func NewHTTPServer(port int, svc BookingService, loc *time.Location, limit RateLimit, logger zerolog.Logger) *HTTPServer {
	if loc == nil {
		loc = time.UTC
	}
	s := &HTTPServer{
		booking: svc,
		loc:     loc,
		limiter: newClientLimiter(limit.RPS, limit.Burst),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/staff/{staff}/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/v1/slots", s.handleSlots)
	mux.Handle("POST /api/v1/holds", s.limited(http.HandlerFunc(s.handleCreateHold)))
	mux.Handle("DELETE /api/v1/holds/{session}", s.limited(http.HandlerFunc(s.handleReleaseHold)))
	mux.Handle("POST /api/v1/bookings", s.limited(http.HandlerFunc(s.handleConfirmBooking)))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("booking API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		logger := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func (s *HTTPServer) limited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
