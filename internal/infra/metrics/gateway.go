package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		gatewayCallDuration,
		gatewayTokenRefreshes,
	)
}

var (
	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Payment provider call latency by operation and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "op", "success"},
	)

	gatewayTokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_token_refresh_total",
			Help:      "Bearer credential fetches by result.",
		},
		[]string{"provider", "result"},
	)
)

func ObserveGatewayCall(provider, op string, started time.Time, err error) {
	gatewayCallDuration.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(err == nil)).
		Observe(time.Since(started).Seconds())
}

func IncTokenRefresh(provider, result string) {
	gatewayTokenRefreshes.WithLabelValues(norm(provider), norm(result)).Inc()
}
