package txm

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/keystore"
	"github.com/smartcontractkit/chainlink-hedera/testutils"
)

var (
	payerID = entity.FromNum(1001)
	node3   = entity.FromNum(3)
	node4   = entity.FromNum(4)
	node5   = entity.FromNum(5)
	t0      = time.Unix(1_700_000_000, 0)
)

// pauseToken is a minimal operation used to drive the engine.
type pauseToken struct {
	token    entity.TokenID
	checksum error
}

func (p pauseToken) WireBody(entity.AccountID, entity.TransactionID) hapi.TransactionData {
	return hapi.TransactionData{Field: hapi.BodyTokenPause, Body: hapi.AppendEntityID(nil, 1, p.token)}
}

func (p pauseToken) Method() string { return hapi.MethodPauseToken }

func (p pauseToken) ValidateChecksums(ledger entity.LedgerID) error {
	if p.checksum != nil {
		return p.checksum
	}
	return p.token.ValidateChecksum(ledger)
}

type fileContents struct {
	file entity.FileID
	free bool
}

func (f fileContents) WireQuery(header hapi.QueryHeader) hapi.QueryData {
	q := hapi.NewQueryData(hapi.QueryFileGetContents, header)
	q.Body = hapi.AppendEntityID(q.Body, 2, f.file)
	return q
}

func (f fileContents) Method() string { return hapi.MethodGetFileContent }

func (f fileContents) IsPaymentRequired() bool { return !f.free }

type testPayer struct {
	id  entity.AccountID
	key keystore.PrivateKey
}

func (p testPayer) AccountID() entity.AccountID { return p.id }

func (p testPayer) SignTransaction(_ context.Context, tx *FrozenTransaction) error {
	return tx.Sign(p.key)
}

// scriptedBackoff returns fixed delays in order, then stops.
type scriptedBackoff struct {
	delays []time.Duration
	i      int
}

func (s *scriptedBackoff) NextBackOff() time.Duration {
	if s.i >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.i]
	s.i++
	return d
}

func (s *scriptedBackoff) Reset() { s.i = 0 }

type harness struct {
	executor  *Executor
	transport *testutils.ScriptedTransport
	network   *testutils.StaticNetwork
	clock     *testutils.FakeClock
}

func newHarness(t *testing.T, lggr logger.Logger, transport *testutils.ScriptedTransport, opts ...func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	require.NoError(t, cfg.Validate())

	if lggr == nil {
		lggr = logger.Test(t)
	}
	h := &harness{
		transport: transport,
		network:   testutils.NewStaticNetwork(node3, node4, node5),
		clock:     testutils.NewFakeClock(t0),
	}
	h.executor = NewExecutor(lggr, cfg, h.network, transport, WithClock(h.clock.Now, h.clock.Sleep))
	return h
}

func newKey(t *testing.T) keystore.PrivateKey {
	key, err := keystore.GenerateEd25519()
	require.NoError(t, err)
	return key
}

func frozenPause(t *testing.T, h *harness, key keystore.PrivateKey, nodes ...entity.AccountID) *FrozenTransaction {
	t.Helper()
	tx := NewTransaction(pauseToken{token: entity.FromNum(777)}).SetNodeAccountIDs(nodes...)
	frozen, err := tx.Freeze(h.executor.FreezeDefaults(payerID))
	require.NoError(t, err)
	require.NoError(t, frozen.Sign(key))
	return frozen
}

func decodeBody(t *testing.T, payload []byte) hapi.TransactionBody {
	t.Helper()
	signedBytes, err := hapi.UnmarshalTransaction(payload)
	require.NoError(t, err)
	var signed hapi.SignedTransaction
	require.NoError(t, signed.Unmarshal(signedBytes))
	var body hapi.TransactionBody
	require.NoError(t, body.Unmarshal(signed.BodyBytes))
	return body
}
