package webhook

import (
	"time"

	"github.com/bissquit/cti-webhook/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Total webhook deliveries by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "webhook",
			Name:      "delivery_duration_seconds",
			Help:      "Time to deliver a webhook payload",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"action"},
	)
)

func recordDelivery(action, outcome string, duration time.Duration) {
	deliveriesTotal.WithLabelValues(action, outcome).Inc()
	deliveryDuration.WithLabelValues(action).Observe(duration.Seconds())
}
