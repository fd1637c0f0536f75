package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypost_ingest_events_total",
			Help: "Total number of webhook events received",
		},
		[]string{"status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waypost_ingest_event_bytes_total",
			Help: "Total bytes of webhook payload data received",
		},
	)

	// Normalization metrics
	NormalizationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypost_normalization_errors_total",
			Help: "Total number of payload rejections by reason",
		},
		[]string{"reason"},
	)

	// Journal metrics
	JournalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waypost_journal_append_duration_seconds",
			Help:    "Duration of durable journal appends in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	JournalErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waypost_journal_errors_total",
			Help: "Total number of journal append failures",
		},
	)

	DuplicateEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waypost_ingest_duplicate_events_total",
			Help: "Total number of idempotent replays short-circuited by the journal",
		},
	)

	// Dispatch metrics
	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypost_dispatch_attempts_total",
			Help: "Total number of sink delivery attempts",
		},
		[]string{"sink", "outcome"},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waypost_sink_delivery_duration_seconds",
			Help:    "End-to-end duration of sink deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	DeliveriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waypost_deliveries_failed_total",
			Help: "Total number of deliveries that exhausted their retries",
		},
		[]string{"sink"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waypost_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)
