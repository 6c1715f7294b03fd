package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var (
	watermarkGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Highest block processed by the sweeper",
			Name:      "sweeper_watermark",
			Namespace: "auditoracle",
		},
	)
	discoveredCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of recorded newly deployed contracts",
			Name:      "sweeper_discovered_total",
			Namespace: "auditoracle",
		},
	)
	skippedTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of sweeper ticks skipped because of a running one",
			Name:      "sweeper_skipped_ticks_total",
			Namespace: "auditoracle",
		},
	)
)

func init() {
	prometheus.MustRegister(
		watermarkGauge,
		discoveredCounter,
		skippedTicks,
	)
}

func setWatermarkMetric(n uint64) {
	watermarkGauge.Set(float64(n))
}

func incDiscovered() {
	discoveredCounter.Inc()
}

func incSkippedTicks() {
	skippedTicks.Inc()
}
