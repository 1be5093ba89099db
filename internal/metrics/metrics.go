// Package metrics exposes Prometheus instrumentation for the narration
// pipeline: package-level counter/gauge vars registered via promauto, with
// a small Record* function per metric family. Purely a side channel — the
// engine calls into it from Policy and Queue decision points, but nothing
// here ever influences admission or ordering.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "narrator_admitted_total",
			Help: "Total number of utterances admitted by the policy.",
		},
	)

	droppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narrator_dropped_total",
			Help: "Total number of faults dropped, by reason.",
		},
		[]string{"reason"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "narrator_queue_depth",
			Help: "Current number of utterances waiting in the delivery queue.",
		},
	)

	deliveryDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "narrator_delivery_duration_seconds",
			Help:    "Time spent delivering a single utterance to its sink.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
)

// RecordAdmitted increments the admitted-utterance counter.
func RecordAdmitted() {
	admittedTotal.Inc()
}

// RecordDropped increments the dropped-fault counter for reason.
func RecordDropped(reason string) {
	droppedTotal.WithLabelValues(reason).Inc()
}

// SetQueueDepth sets the current pending-queue length.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordDeliveryDuration observes how long a single delivery took.
func RecordDeliveryDuration(d time.Duration) {
	deliveryDurationSeconds.Observe(d.Seconds())
}
