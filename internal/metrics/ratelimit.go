package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// rateLimitExceeded counts HTTP 429 events from the rate limit middleware.
// Labels:
// - endpoint: short name like "messages:email", "messages:sms"
// - source:   "tenant" or "ip"
var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "courier",
		Subsystem: "http",
		Name:      "rate_limit_exceeded_total",
		Help:      "Number of requests rejected due to rate limiting (HTTP 429)",
	},
	[]string{"endpoint", "source"},
)

// IncRateLimitExceeded increments the 429 counter for the given endpoint and source.
func IncRateLimitExceeded(endpoint, source string) {
	rateLimitExceeded.WithLabelValues(orUnknown(endpoint), orUnknown(source)).Inc()
}
