package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbridge_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_messages_appended_total",
			Help: "Total messages appended to conversation logs",
		},
		[]string{"origin"}, // "web" or "channel"
	)

	OutboundEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_outbound_enqueued_total",
			Help: "Total messages enqueued for the channel agent",
		},
	)

	OutboundClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_outbound_claimed_total",
			Help: "Total outbound messages claimed by the channel agent",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbridge_status_transitions_total",
			Help: "Total message status transitions",
		},
		[]string{"to"},
	)

	// Fan-out metrics
	NotifyAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_notify_attempts_total",
			Help: "Total fan-out notification attempts",
		},
	)

	NotifyDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_notify_delivered_total",
			Help: "Total session pushes delivered",
		},
	)

	NotifyDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbridge_notify_dropped_total",
			Help: "Total notifications dropped (no live session)",
		},
	)
)
