package txm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promExecutionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "hedera_execution_attempts_total", Help: "Requests sent to nodes"},
		[]string{"method", "node"},
	)
	promPrecheckStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "hedera_precheck_status_total", Help: "Precheck statuses returned by nodes"},
		[]string{"method", "status"},
	)
	promExecutionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "hedera_execution_failures_total", Help: "Executions that ended in an error"},
		[]string{"method", "reason"},
	)
	promQueryCost = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hedera_query_cost_tinybars", Help: "Last cost paid for a query"},
		[]string{"method"},
	)
)
