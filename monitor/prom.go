package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

const (
	denominationHbar = "HBAR"
	tinybarsPerHbar  = 100_000_000
)

var (
	promHederaBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hedera_balance", Help: "Hedera account balances in HBAR"},
		[]string{"account", "network", "denomination"},
	)
	promHederaBalancePollFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "hedera_balance_poll_failures", Help: "Balance polls in which no balance could be read"},
		[]string{"network"},
	)
)

// updateProm records the balance under the ledger name, or the hex ledger id
// for a custom network.
func (b *balanceMonitor) updateProm(acc entity.AccountID, tinybars uint64) {
	promHederaBalance.WithLabelValues(acc.String(), b.network, denominationHbar).Set(tinybarsToHbar(tinybars))
}

func (b *balanceMonitor) countPollFailure() {
	promHederaBalancePollFailures.WithLabelValues(b.network).Inc()
}

func tinybarsToHbar(tinybars uint64) float64 {
	return float64(tinybars) / tinybarsPerHbar
}
