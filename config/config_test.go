package config

import (
	_ "embed"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/config"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

//go:embed testdata/config-full.toml
var fullTOML string

func TestDefaultsMatchExecutor(t *testing.T) {
	c := Defaults()
	require.Len(t, c.Nodes, 0)

	cfg, err := c.ExecutorConfig()
	require.NoError(t, err)
	assert.Equal(t, txm.DefaultConfig(), cfg)
	assert.Equal(t, time.Minute, c.BalancePollPeriod())

	perSecond, burst := c.RateLimit()
	assert.Zero(t, perSecond)
	assert.Equal(t, 1, burst)
}

func TestDecodeFull(t *testing.T) {
	c, err := Decode(strings.NewReader(fullTOML))
	require.NoError(t, err)
	c.SetDefaults()
	require.NoError(t, c.ValidateConfig())

	cfg, err := c.ExecutorConfig()
	require.NoError(t, err)
	assert.Equal(t, txm.Config{
		LedgerID:                 entity.Testnet,
		MaxAttempts:              3,
		MinBackoff:               100 * time.Millisecond,
		MaxBackoff:               time.Second,
		GrpcDeadline:             5 * time.Second,
		RequestTimeout:           30 * time.Second,
		NodeSuspectWindow:        time.Minute,
		MaxNodesPerTransaction:   2,
		TransactionValidDuration: 90 * time.Second,
		DefaultMaxTransactionFee: 1000,
		DefaultMaxQueryPayment:   500,
		ReceiptPollInterval:      250 * time.Millisecond,
		ReceiptTimeout:           45 * time.Second,
	}, cfg)

	// explicit nodes replace the preset
	nodes, err := c.NetworkNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "local", nodes[0].Name)
	assert.Equal(t, entity.FromNum(3), nodes[0].AccountID)
	assert.Equal(t, "127.0.0.1:50211", nodes[0].URL.Host)

	operator, ok, err := c.OperatorAccountID()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entity.FromNum(1001), operator)

	perSecond, burst := c.RateLimit()
	assert.Equal(t, 20.0, perSecond)
	assert.Equal(t, 5, burst)
	assert.Equal(t, 10*time.Second, c.BalancePollPeriod())
}

func TestDecodeUnknownField(t *testing.T) {
	_, err := Decode(strings.NewReader("Network = 'testnet'\nChainID = 'x'\n"))
	require.Error(t, err)
}

func TestPresetNetworks(t *testing.T) {
	assert.Equal(t, []string{"mainnet", "previewnet", "testnet"}, Networks())

	for _, name := range Networks() {
		t.Run(name, func(t *testing.T) {
			c := NewDefault(name)
			require.NoError(t, c.ValidateConfig())

			nodes, err := c.NetworkNodes()
			require.NoError(t, err)
			require.NotEmpty(t, nodes)
			assert.Equal(t, entity.FromNum(3), nodes[0].AccountID)
			assert.Equal(t, "true", nodes[0].URL.Query().Get("insecure"))

			ledger, err := c.Ledger()
			require.NoError(t, err)
			assert.Equal(t, name, ledger.String())
		})
	}
}

func TestLedgerOverride(t *testing.T) {
	c := NewDefault("testnet")
	c.LedgerID = ptr("0x2a")
	ledger, err := c.Ledger()
	require.NoError(t, err)
	assert.Equal(t, entity.LedgerID{0x2a}, ledger)
}

func TestValidateConfig(t *testing.T) {
	c := Defaults()
	c.Network = ptr("devnet")
	c.Operator.AccountID = ptr("not-an-account")
	c.Execution.MaxAttempts = ptr[uint32](0)
	c.Nodes = NodeConfigs{
		{Name: ptr("a"), AccountID: ptr("0.0.3"), URL: config.MustParseURL("grpc://a:50211")},
		{Name: ptr("a"), AccountID: ptr("0.0.3"), URL: config.MustParseURL("grpc://a:50211")},
		{Name: ptr(""), AccountID: ptr("0.0.x")},
	}

	err := c.ValidateConfig()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"Network", "Operator.AccountID", "Nodes.1.Name", "Nodes.1.AccountID", "Nodes.1.URL", "MaxAttempts"} {
		assert.Contains(t, msg, want)
	}
}

func TestNoNodes(t *testing.T) {
	c := Defaults()
	var missing config.ErrMissing
	require.ErrorAs(t, c.ValidateConfig(), &missing)
}

func TestNodeConfigsSetFrom(t *testing.T) {
	nodes, ok := PresetNodes("testnet")
	require.True(t, ok)
	url := config.MustParseURL("grpc://localhost:50211")
	nodes.SetFrom(&NodeConfigs{
		{Name: ptr("testnet-0.0.3"), URL: url},
		{Name: ptr("extra"), AccountID: ptr("0.0.99"), URL: url},
	})
	require.Len(t, nodes, 5)
	assert.Equal(t, url, nodes[0].URL)
	assert.Equal(t, "0.0.3", *nodes[0].AccountID)
	assert.Equal(t, "extra", *nodes[4].Name)
}

func TestTOMLStringRoundTrip(t *testing.T) {
	c := NewDefault("previewnet")
	s, err := c.TOMLString()
	require.NoError(t, err)

	back, err := Decode(strings.NewReader(s))
	require.NoError(t, err)
	assert.Equal(t, *c.Network, *back.Network)
	assert.Len(t, back.Nodes, len(c.Nodes))
}
