package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rail_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rail_provider_call_seconds",
			Help:    "Duration of fare provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_booking_transitions_total",
			Help: "Booking status transitions",
		},
		[]string{"status"},
	)

	ReconciliationCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_reconciliation_candidates_total",
			Help: "Reservations made upstream whose booking could not be persisted",
		},
	)

	ReservationsOrphaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_reservations_orphaned_total",
			Help: "Journal entries flagged by the reconcile sweep",
		},
	)

	PolicyUnavailable = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_policy_unavailable_total",
			Help: "Policy evaluations that fell back to NOT_SPECIFIED",
		},
	)

	TripAttachConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_trip_attach_conflicts_total",
			Help: "Version conflicts while attaching bookings to trips",
		},
	)

	PartialProfiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_partial_profiles_total",
			Help: "Profiles served from the fallback record",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rail_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rail_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
