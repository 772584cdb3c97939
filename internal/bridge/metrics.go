package bridge

import (
	"time"

	"github.com/bissquit/cti-webhook/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "messages_total",
			Help:      "Total stream messages by classification and outcome",
		},
		[]string{"classification", "outcome"},
	)

	processingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "errors_total",
			Help:      "Total message processing failures by kind",
		},
		[]string{"kind"},
	)

	processingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "processing_duration_seconds",
			Help:      "Time to process one stream message",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	enrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "enrichment_duration_seconds",
			Help:      "Time to assemble an alert from platform lookups",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	deletedIncidents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "bridge",
			Name:      "deleted_incidents",
			Help:      "Number of incidents announced as deleted since start",
		},
	)
)

func recordMessage(result Result, duration time.Duration) {
	classification := string(result.Kind)
	if classification == "" {
		classification = "unknown"
	}
	messagesTotal.WithLabelValues(classification, string(result.Outcome)).Inc()
	if kind := KindOf(result.Err); kind != "" {
		processingErrors.WithLabelValues(string(kind)).Inc()
	}
	processingDuration.Observe(duration.Seconds())
}
