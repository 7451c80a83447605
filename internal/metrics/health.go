package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dependencyUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "courier",
		Subsystem: "dependency",
		Name:      "up",
		Help:      "Result of the last health probe per backing service (1=up, 0=down).",
	}, []string{"dependency"})

	dependencyPingSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "courier",
		Subsystem: "dependency",
		Name:      "ping_seconds",
		Help:      "Health probe latency per backing service.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"dependency"})
)

// ObserveProbe records one health probe of a backing service ("postgres", "redis").
func ObserveProbe(dependency string, up bool, seconds float64) {
	dependency = orUnknown(dependency)
	v := 0.0
	if up {
		v = 1
	}
	dependencyUp.WithLabelValues(dependency).Set(v)
	dependencyPingSeconds.WithLabelValues(dependency).Observe(seconds)
}
