package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerCallLatencyMs, providerPollTicksTotal, providerCostUsd) }

var providerCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "provider_call_latency_ms",
		Help:    "Provider API call latency distribution in milliseconds.",
		Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 30000},
	},
	[]string{"provider", "op", "success"},
)

var providerPollTicksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provider_poll_ticks_total",
		Help: "Status polls issued against asynchronous providers.",
	},
	[]string{"provider"},
)

var providerCostUsd = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provider_cost_usd_total",
		Help: "Reported transcription cost per provider, in USD.",
	},
	[]string{"provider"},
)

func ObserveProviderCall(provider, op string, latencyMs int64, success bool) {
	providerCallLatencyMs.
		WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncPollTick(provider string) {
	providerPollTicksTotal.WithLabelValues(norm(provider)).Inc()
}

func AddProviderCost(provider string, usd float64) {
	if usd > 0 {
		providerCostUsd.WithLabelValues(norm(provider)).Add(usd)
	}
}
