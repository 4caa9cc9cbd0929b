// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VideoRatesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peertube_video_rates_applied_total",
			Help: "Rate changes applied to videos",
		},
		[]string{"source", "rating"}, // source: local, remote
	)

	TransactionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "peertube_transaction_retries_total",
			Help: "Store transactions retried after a conflict",
		},
	)

	ActivitiesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peertube_activities_delivered_total",
			Help: "Outbound activity deliveries by result",
		},
		[]string{"type", "result"}, // result: ok, retry, dropped
	)

	InboxActivities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peertube_inbox_activities_total",
			Help: "Inbound activities by type and result",
		},
		[]string{"type", "result"}, // result: ok, duplicate, rejected, error
	)

	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "peertube_queue_pending_messages",
			Help: "Messages waiting in the job queue",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peertube_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
