package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

var (
	once sync.Once

	holdsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_created_total",
			Help:      "Count of hold attempts by result (ok, conflict, error).",
		},
		[]string{"result"},
	)

	holdsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_released_total",
			Help:      "Count of holds released explicitly by sessions.",
		},
	)

	holdsPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holds_purged_total",
			Help:      "Count of expired holds removed by the reaper.",
		},
	)

	bookingsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_confirmed_total",
			Help:      "Count of booking confirmations by result (ok, expired, missing, conflict, error).",
		},
		[]string{"result"},
	)

	availabilityFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_fallback_total",
			Help:      "Count of working windows served from house hours because schedule data was missing.",
		},
	)

	slotsListed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_listed_total",
			Help:      "Count of slot listings by mode (staff, any).",
		},
		[]string{"mode"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			holdsCreated,
			holdsReleased,
			holdsPurged,
			bookingsConfirmed,
			availabilityFallback,
			slotsListed,
			httpRequests,
		)
	})
}

func IncHoldCreated(result string) {
	holdsCreated.WithLabelValues(result).Inc()
}

func IncHoldReleased() {
	holdsReleased.Inc()
}

func AddHoldsPurged(n int) {
	holdsPurged.Add(float64(n))
}

func IncBookingConfirmed(result string) {
	bookingsConfirmed.WithLabelValues(result).Inc()
}

func IncAvailabilityFallback() {
	availabilityFallback.Inc()
}

func IncSlotsListed(mode string) {
	slotsListed.WithLabelValues(mode).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
