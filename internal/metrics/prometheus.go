package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job metrics
var (
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_submitted_total",
			Help: "Total number of jobs accepted by the dispatcher",
		},
		[]string{"kind"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"kind", "status"}, // succeeded, failed
	)

	JobProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_processing_duration_seconds",
			Help:    "Duration from claim to terminal write",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_in_flight",
			Help: "Number of jobs currently running in this process",
		},
	)

	BulkRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_recipients_total",
			Help: "Per-recipient outcomes of bulk jobs",
		},
		[]string{"status"}, // success, failed, error
	)
)

// Transport metrics
var (
	TransportSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_sends_total",
			Help: "Total number of delivery attempts by provider and result",
		},
		[]string{"provider", "result"}, // sent, rejected, error
	)

	TransportSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transport_send_duration_seconds",
			Help:    "Duration of delivery attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	TransportHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transport_healthy",
			Help: "1 if the last health checks of the provider passed, 0 otherwise",
		},
		[]string{"provider"},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Store metrics
var (
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of result store errors",
		},
		[]string{"op"}, // create, get, set_status
	)
)
