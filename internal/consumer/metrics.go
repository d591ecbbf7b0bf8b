package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "sleeplog_service"

var (
	processedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "events_processed_total",
		Help:      "Sleep-log events handled and committed.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Handler failures. The offending message stays uncommitted.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Records skipped because their framing or headers were unreadable.",
	}, []string{"topic"})

	handleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "handle_duration_seconds",
		Help:      "Time spent in the handler per event.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"event_type"})

	eventAgeGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "consumer",
		Name:      "last_event_age_seconds",
		Help:      "Age of the most recently committed event when it was handled.",
	}, []string{"topic"})
)

func observeHandled(msg Message, took time.Duration, now time.Time) {
	handleDuration.WithLabelValues(msg.EventType).Observe(took.Seconds())
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		eventAgeGauge.WithLabelValues(msg.Topic).Set(now.Sub(msg.Timestamp).Seconds())
	}
}
