package scorer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var (
	scoreTimes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Risk-analysis service call time",
			Name:      "scorer_request_time",
			Namespace: "auditoracle",
		},
	)
	unavailableCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of scoring attempts without security data",
			Name:      "scorer_unavailable_total",
			Namespace: "auditoracle",
		},
	)
)

func init() {
	prometheus.MustRegister(
		scoreTimes,
		unavailableCounter,
	)
}

func addScoreTimeMetric(t time.Duration) {
	scoreTimes.Observe(t.Seconds())
}

func incUnavailable() {
	unavailableCounter.Inc()
}
