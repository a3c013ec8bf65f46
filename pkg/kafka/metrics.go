package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events handed to Kafka, by event type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "accounts",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Time spent writing one event to Kafka.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"event_type"},
	)

	payloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "accounts",
			Subsystem: "events",
			Name:      "payload_bytes",
			Help:      "Encoded size of published events.",
			// the reset email event carries rendered HTML
			Buckets: prometheus.ExponentialBuckets(256, 4, 6),
		},
		[]string{"event_type"},
	)
)

func recordPublish(eventType string, size int, start time.Time, err error) {
	publishDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	if err != nil {
		eventsPublished.WithLabelValues(eventType, outcomeError).Inc()
		return
	}
	eventsPublished.WithLabelValues(eventType, outcomeSuccess).Inc()
	payloadBytes.WithLabelValues(eventType).Observe(float64(size))
}
