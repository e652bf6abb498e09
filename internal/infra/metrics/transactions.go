package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		transactionsTotal,
		revenueMinorTotal,
		refundsTotal,
	)
}

var (
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions reaching a status, by status and provider.",
		},
		[]string{"status", "provider"},
	)

	revenueMinorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_minor_units_total",
			Help:      "Collected amount of successful transactions in minor units, by package.",
		},
		[]string{"package"},
	)

	refundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund attempts by result.",
		},
		[]string{"result"}, // ok|failed
	)
)

func IncTransaction(status, provider string) {
	transactionsTotal.WithLabelValues(norm(status), norm(provider)).Inc()
}

func AddRevenue(packageID string, amount int64) {
	if amount > 0 {
		revenueMinorTotal.WithLabelValues(norm(packageID)).Add(float64(amount))
	}
}

func IncRefund(result string) {
	refundsTotal.WithLabelValues(norm(result)).Inc()
}
