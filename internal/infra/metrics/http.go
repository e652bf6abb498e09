package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestDuration) }

var httpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by route pattern and status code.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"route", "method", "code"},
)

func ObserveHTTPRequest(route, method string, code int, started time.Time) {
	httpRequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(time.Since(started).Seconds())
}
