package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dispatchUnitsTotal counts persisted outbound units by channel and result.
	// Labels:
	// - channel: email | sms
	// - result: success | failure | pending
	dispatchUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "dispatch",
			Name:      "units_total",
			Help:      "Outbound units persisted by channel and result.",
		},
		[]string{"channel", "result"},
	)

	// providerCallSeconds observes provider call latency.
	// Labels:
	// - channel: email | sms
	// - outcome: ok | connection | template_io | template_parse | send
	providerCallSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "courier",
			Subsystem: "dispatch",
			Name:      "provider_call_seconds",
			Help:      "Provider call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel", "outcome"},
	)

	// resolutionGapsTotal counts fan-outs to a recipient category without a resolver.
	resolutionGapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "dispatch",
			Name:      "resolution_gaps_total",
			Help:      "Fan-out requests for recipient categories without a resolver.",
		},
		[]string{"object_type"},
	)

	// verificationsTotal counts verification attempts.
	// Labels:
	// - result: success | expired | mismatch | error
	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "verification",
			Name:      "attempts_total",
			Help:      "Verification code checks by result.",
		},
		[]string{"result"},
	)

	// sweptUnitsTotal counts pending units processed by the sweeper.
	sweptUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courier",
			Subsystem: "sweeper",
			Name:      "units_total",
			Help:      "Pending units processed by the sweeper by channel and result.",
		},
		[]string{"channel", "result"},
	)
)

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// IncDispatchUnit increments the persisted unit counter.
func IncDispatchUnit(channel, result string) {
	dispatchUnitsTotal.WithLabelValues(orUnknown(channel), orUnknown(result)).Inc()
}

// ObserveProviderCall records one provider call.
func ObserveProviderCall(channel, outcome string, seconds float64) {
	providerCallSeconds.WithLabelValues(orUnknown(channel), orUnknown(outcome)).Observe(seconds)
}

// IncResolutionGap increments the resolution gap counter.
func IncResolutionGap(objectType string) {
	resolutionGapsTotal.WithLabelValues(orUnknown(objectType)).Inc()
}

// IncVerification increments the verification outcome counter.
func IncVerification(result string) {
	verificationsTotal.WithLabelValues(orUnknown(result)).Inc()
}

// IncSwept increments the sweeper counter.
func IncSwept(channel, result string) {
	sweptUnitsTotal.WithLabelValues(orUnknown(channel), orUnknown(result)).Inc()
}
