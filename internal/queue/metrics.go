package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics for Prometheus monitoring.
var (
	MessagesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_enqueued_total",
			Help: "Total number of job ids enqueued by backend",
		},
		[]string{"backend"}, // memory, redis, sqs
	)

	MessagesAckedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_acked_total",
			Help: "Total number of deliveries acknowledged by backend",
		},
		[]string{"backend"},
	)

	MessagesRedeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_redelivered_total",
			Help: "Total number of unacknowledged entries delivered again",
		},
		[]string{"backend"},
	)

	MalformedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_malformed_messages_total",
			Help: "Total number of undecodable queue entries dropped",
		},
		[]string{"backend"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Job ids buffered (memory) or delivered but unacknowledged (redis)",
		},
		[]string{"backend"},
	)
)
