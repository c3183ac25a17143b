package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/utils/tests"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/mocks"
)

func TestBalanceMonitorExportsBalances(t *testing.T) {
	for _, tc := range []struct {
		name     string
		ledger   entity.LedgerID
		network  string
		tinybars uint64
		hbar     float64
	}{
		{"mainnet zero", entity.Mainnet, "mainnet", 0, 0},
		{"testnet fractional", entity.Testnet, "testnet", 150_000_000, 1.5},
		{"previewnet large", entity.Previewnet, "previewnet", 5_000_000_000_000_000, 50_000_000},
		{"custom ledger", entity.LedgerID{0xca, 0xfe}, "cafe", 1, 0.00000001},
	} {
		t.Run(tc.name, func(t *testing.T) {
			acc := entity.FromNum(1001)
			client := mocks.NewBalanceClient(t)
			client.On("GetAccountBalance", mock.Anything, acc).Return(tc.tinybars, nil)
			b := newBalanceMonitor(tc.ledger, &config{balancePollPeriod: time.Hour}, logger.Test(t), staticAccounts{"0.0.1001"}, func() (BalanceClient, error) {
				return client, nil
			})

			promHederaBalance.Reset()
			require.NoError(t, b.poll(tests.Context(t)))

			assert.Equal(t, 1, testutil.CollectAndCount(promHederaBalance))
			assert.Equal(t, tc.hbar, testutil.ToFloat64(promHederaBalance.WithLabelValues("0.0.1001", tc.network, "HBAR")))
		})
	}
}

func TestBalanceMonitorCountsPollFailures(t *testing.T) {
	acc := entity.FromNum(1001)
	client := mocks.NewBalanceClient(t)
	client.On("GetAccountBalance", mock.Anything, acc).Return(uint64(0), errors.New("unreachable"))
	b := newBalanceMonitor(entity.LedgerID{0x07}, &config{balancePollPeriod: 10 * time.Millisecond}, logger.Test(t), staticAccounts{"0.0.1001"}, func() (BalanceClient, error) {
		return client, nil
	})

	require.NoError(t, b.Start(tests.Context(t)))
	t.Cleanup(func() {
		assert.NoError(t, b.Close())
	})
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(promHederaBalancePollFailures.WithLabelValues("07")) >= 1
	}, tests.WaitTimeout(t), 10*time.Millisecond)
	assert.ErrorContains(t, b.HealthReport()[b.Name()], "unreachable")
}
