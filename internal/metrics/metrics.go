// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics defines the Prometheus instrumentation of the relay:
// HTTP traffic, webhook ingress, DuckDB queries, notification delivery,
// and the SMS circuit breaker. All collectors register on the default
// registry and are exposed at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payflux_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payflux_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Webhook ingress metrics

	WebhookBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_webhook_batches_total",
			Help: "Total number of webhook batches by outcome",
		},
		[]string{"outcome"}, // "ok", "partial_failure"
	)

	WebhookElementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_webhook_elements_total",
			Help: "Total number of webhook batch elements by instruction and result",
		},
		[]string{"instruction", "result"}, // result: "processed", "skipped", "failed"
	)

	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payflux_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// Notification metrics

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_notifications_total",
			Help: "Total number of SMS notifications by kind and result",
		},
		[]string{"kind", "result"}, // kind: "pending", "fulfilled", "test", "resend"
	)

	NotificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payflux_notification_send_duration_seconds",
			Help:    "Duration of SMS provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	DispatchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payflux_dispatch_retries_total",
			Help: "Total number of notification delivery retries",
		},
	)

	// Circuit breaker metrics (SMS provider)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payflux_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Chain stream metrics

	ChainStreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflux_chain_stream_events_total",
			Help: "Total number of events received over the WebSocket stream",
		},
		[]string{"event"},
	)

	ChainStreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payflux_chain_stream_reconnects_total",
			Help: "Total number of WebSocket stream reconnect attempts",
		},
	)
)

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDBQuery records one database query with its outcome.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
