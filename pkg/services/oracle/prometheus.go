package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess   = "success"
	resultReverted  = "reverted"
	resultError     = "error"
	resultDuplicate = "duplicate"
)

// Metrics used in monitoring service.
var (
	fulfillments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of processed audit requests by result",
			Name:      "oracle_fulfillments_total",
			Namespace: "auditoracle",
		},
		[]string{"result"},
	)
	fallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of audit requests fulfilled with the fallback score",
			Name:      "oracle_fallbacks_total",
			Namespace: "auditoracle",
		},
	)
)

func init() {
	prometheus.MustRegister(
		fulfillments,
		fallbacks,
	)
}

func incFulfillment(result string) {
	fulfillments.WithLabelValues(result).Inc()
}

func incFallback() {
	fallbacks.Inc()
}
