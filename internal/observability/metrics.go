package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sleepLoggedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sleeplog_service",
		Subsystem: "sleep",
		Name:      "logs_recorded_total",
		Help:      "Number of sleep logs stored, labeled by quality.",
	}, []string{"quality"})

	sleepConflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sleeplog_service",
		Subsystem: "sleep",
		Name:      "overlap_rejections_total",
		Help:      "Number of sleep logs rejected because they overlap an existing log.",
	})

	sleepDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sleeplog_service",
		Subsystem: "sleep",
		Name:      "recorded_duration_minutes",
		Help:      "Length of recorded sleep sessions in minutes.",
		Buckets:   prometheus.LinearBuckets(60, 60, 12),
	})

	aggregationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sleeplog_service",
		Subsystem: "aggregate",
		Name:      "requests_total",
		Help:      "Trailing-average computations, labeled by cache outcome.",
	}, []string{"cache"})

	lastRecordedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sleeplog_service",
		Subsystem: "persistence",
		Name:      "last_sleep_log_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent sleep log persisted.",
	})
)

func init() {
	prometheus.MustRegister(sleepLoggedCounter, sleepConflictCounter, sleepDurationHistogram, aggregationCounter, lastRecordedGauge)
}

// RecordSleepLogged counts a stored sleep log and observes its length.
func RecordSleepLogged(quality string, durationMin int64) {
	sleepLoggedCounter.WithLabelValues(quality).Inc()
	sleepDurationHistogram.Observe(float64(durationMin))
	lastRecordedGauge.Set(float64(time.Now().Unix()))
}

// RecordSleepConflict counts an overlap rejection.
func RecordSleepConflict() {
	sleepConflictCounter.Inc()
}

// RecordAggregation counts a trailing-average request.
func RecordAggregation(cacheHit bool) {
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	aggregationCounter.WithLabelValues(label).Inc()
}
