package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsExpiredTotal,
		disconnectFailuresTotal,
		reconcilerOutcomesTotal,
	)
}

var (
	sessionsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions expired by the sweeper, by kind.",
		},
		[]string{"kind"}, // transaction|access_code
	)

	disconnectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnect_failures_total",
			Help:      "Disconnect hook failures during sweeps, by kind.",
		},
		[]string{"kind"},
	)

	reconcilerOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_outcomes_total",
			Help:      "Out-of-band reconciliation results by action and resulting status.",
		},
		[]string{"action", "status"}, // action: reconcile|refund
	)
)

func AddSessionsExpired(kind string, n int) {
	if n > 0 {
		sessionsExpiredTotal.WithLabelValues(norm(kind)).Add(float64(n))
	}
}

func AddDisconnectFailures(kind string, n int) {
	if n > 0 {
		disconnectFailuresTotal.WithLabelValues(norm(kind)).Add(float64(n))
	}
}

func IncReconcilerOutcome(action, status string) {
	reconcilerOutcomesTotal.WithLabelValues(norm(action), norm(status)).Inc()
}
