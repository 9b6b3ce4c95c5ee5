// Package metrics exposes Prometheus counters for the gateway.
//
// Admitted and rejected traffic are counted separately: usage records only
// cover forwarded requests, so these counters are the only place rejected
// traffic (bad keys, exhausted quotas) is visible to operators.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	admittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "apigate",
			Name:      "requests_admitted_total",
			Help:      "Requests that passed all checks and were forwarded upstream.",
		},
	)
	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apigate",
			Name:      "requests_rejected_total",
			Help:      "Requests rejected before forwarding, by reason.",
		},
		[]string{"reason"},
	)
	upstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "apigate",
			Name:      "upstream_duration_seconds",
			Help:      "Histogram of upstream round-trip durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	registerOnce sync.Once
)

// Register registers the gateway collectors with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(admittedTotal, rejectedTotal, upstreamDuration)
	})
}

// ObserveAdmitted records one forwarded request and its upstream latency.
func ObserveAdmitted(seconds float64) {
	admittedTotal.Inc()
	upstreamDuration.Observe(seconds)
}

// ObserveRejected records one rejected request with the given reason.
func ObserveRejected(reason string) {
	rejectedTotal.WithLabelValues(reason).Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
