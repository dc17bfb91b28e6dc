package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// AuthOperations counts credential lifecycle operations by outcome. The
	// reason label carries the error code on failure.
	AuthOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Total number of credential lifecycle operations",
		},
		[]string{"operation", "outcome", "reason"},
	)

	// PasswordHashDuration observes bcrypt hash and verify latency including
	// time spent waiting for a worker.
	PasswordHashDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_password_hash_duration_seconds",
			Help:    "Duration of password hash and verify calls in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op"},
	)

	// NotificationsSent counts outbound notification attempts per transport.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_notifications_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"transport", "outcome"},
	)

	// NotificationsInFlight tracks asynchronous sends not yet finished.
	NotificationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_notifications_in_flight",
			Help: "Number of notifications currently being delivered",
		},
	)
)
