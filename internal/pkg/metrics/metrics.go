// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric exported by the service.
const Namespace = "ctiwebhook"

var (
	// HTTPRequestDuration tracks latency of the ops HTTP server.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// PlatformRequestDuration tracks GraphQL calls to the platform.
	PlatformRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "platform",
			Name:      "request_duration_seconds",
			Help:      "Platform GraphQL request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "status"},
	)

	// StreamConnected is 1 while the stream source holds a live subscription.
	StreamConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "stream",
			Name:      "connected",
			Help:      "Whether the stream source is currently subscribed",
		},
		[]string{"source"},
	)

	// StreamDropped counts events dropped before reaching the handler.
	StreamDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Total stream events dropped before processing",
		},
		[]string{"source"},
	)

	// StreamReconnects counts stream reconnection attempts.
	StreamReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total stream reconnection attempts",
		},
		[]string{"source"},
	)
)

// RecordPlatformRequest records the duration of one platform call.
func RecordPlatformRequest(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PlatformRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// SetStreamConnected updates the stream connection gauge.
func SetStreamConnected(source string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	StreamConnected.WithLabelValues(source).Set(v)
}
