package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		codesGeneratedTotal,
		codeRedemptionsTotal,
		codeSpaceRemaining,
	)
}

var (
	codesGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_codes_generated_total",
			Help:      "Access codes issued, by plan.",
		},
		[]string{"plan"},
	)

	codeRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_code_redemptions_total",
			Help:      "Access code redemption attempts by step and outcome.",
		},
		[]string{"step", "result"}, // step: activate|bind|start_session
	)

	codeSpaceRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "access_code_space_remaining",
			Help:      "Theoretical number of codes that can still be issued.",
		},
	)
)

func AddCodesGenerated(plan string, n int) {
	if n > 0 {
		codesGeneratedTotal.WithLabelValues(norm(plan)).Add(float64(n))
	}
}

func IncCodeRedemption(step, result string) {
	codeRedemptionsTotal.WithLabelValues(norm(step), norm(result)).Inc()
}

func SetCodeSpaceRemaining(n int64) {
	codeSpaceRemaining.Set(float64(n))
}
