package operations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/keystore"
	"github.com/smartcontractkit/chainlink-hedera/testutils"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

var (
	operator = entity.FromNum(1001)
	node3    = entity.FromNum(3)
)

type payer struct {
	key keystore.PrivateKey
}

func (p payer) AccountID() entity.AccountID { return operator }

func (p payer) SignTransaction(_ context.Context, tx *txm.FrozenTransaction) error {
	return tx.Sign(p.key)
}

func newExecutor(t *testing.T, transport *testutils.ScriptedTransport) *txm.Executor {
	t.Helper()
	cfg := txm.DefaultConfig()
	cfg.LedgerID = entity.Testnet
	clock := testutils.NewFakeClock(time.Unix(1_700_000_000, 0))
	return txm.NewExecutor(logger.Test(t), cfg, testutils.NewStaticNetwork(node3), transport, txm.WithClock(clock.Now, clock.Sleep))
}

func freeze(t *testing.T, data txm.TransactionData) hapi.TransactionBody {
	t.Helper()
	frozen, err := txm.NewTransaction(data).SetNodeAccountIDs(node3).Freeze(txm.FreezeDefaults{
		Payer:         operator,
		ValidDuration: time.Minute,
		Ledger:        entity.Testnet,
	})
	require.NoError(t, err)
	bodyBytes, err := frozen.BodyBytes(node3)
	require.NoError(t, err)
	var body hapi.TransactionBody
	require.NoError(t, body.Unmarshal(bodyBytes))
	return body
}

func fields(t *testing.T, msg []byte) map[int][]hapi.Field {
	t.Helper()
	out := map[int][]hapi.Field{}
	require.NoError(t, hapi.Walk(msg, func(f hapi.Field) error {
		out[int(f.Num)] = append(out[int(f.Num)], f)
		return nil
	}))
	return out
}

func entityField(t *testing.T, f hapi.Field) entity.EntityID {
	t.Helper()
	id, err := hapi.UnmarshalEntityID(f.Bytes)
	require.NoError(t, err)
	return id
}

func TestTransferMergesAccounts(t *testing.T) {
	alice, bob := entity.FromNum(2001), entity.FromNum(2002)
	tr := NewTransfer().
		AddHbarTransfer(alice, -10).
		AddHbarTransfer(bob, 4).
		AddHbarTransfer(bob, 6)

	assert.Equal(t, int64(0), tr.Balance())
	require.Len(t, tr.HbarTransfers(), 2)

	body := freeze(t, tr)
	assert.Equal(t, hapi.BodyCryptoTransfer, body.Data.Field)
	transfers, err := hapi.ParseCryptoTransferBody(body.Data.Body)
	require.NoError(t, err)
	assert.Equal(t, []hapi.Transfer{
		{AccountID: alice, Amount: -10},
		{AccountID: bob, Amount: 10},
	}, transfers)
}

func TestTransferChecksums(t *testing.T) {
	mainnetOnly := entity.MustParse("0.0.123-vfmkw")
	tr := NewTransfer().AddHbarTransfer(mainnetOnly, -1).AddHbarTransfer(operator, 1)

	_, err := txm.NewTransaction(tr).SetNodeAccountIDs(node3).Freeze(txm.FreezeDefaults{
		Payer:         operator,
		ValidDuration: time.Minute,
		Ledger:        entity.Testnet,
	})
	var mismatch *entity.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "esxsf", mismatch.Expected)
	assert.Equal(t, "vfmkw", mismatch.Actual)

	require.NoError(t, tr.ValidateChecksums(entity.Mainnet))
}

func TestTokenOperationBodies(t *testing.T) {
	token := entity.New(0, 0, 5005)
	account := entity.FromNum(2001)

	cases := []struct {
		name    string
		data    txm.TransactionData
		field   int
		method  string
		account bool
	}{
		{"pause", TokenPause{TokenID: token}, int(hapi.BodyTokenPause), hapi.MethodPauseToken, false},
		{"unpause", TokenUnpause{TokenID: token}, int(hapi.BodyTokenUnpause), hapi.MethodUnpauseToken, false},
		{"unfreeze", TokenUnfreeze{TokenID: token, AccountID: account}, int(hapi.BodyTokenUnfreeze), hapi.MethodUnfreezeTokenAccount, true},
		{"revoke kyc", TokenRevokeKyc{TokenID: token, AccountID: account}, int(hapi.BodyTokenRevokeKyc), hapi.MethodRevokeKycFromToken, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.method, tc.data.Method())
			body := freeze(t, tc.data)
			require.Equal(t, tc.field, int(body.Data.Field))

			fs := fields(t, body.Data.Body)
			require.Len(t, fs[1], 1)
			assert.Equal(t, token, entityField(t, fs[1][0]))
			if tc.account {
				require.Len(t, fs[2], 1)
				assert.Equal(t, account, entityField(t, fs[2][0]))
			} else {
				assert.Empty(t, fs[2])
			}
		})
	}
}

func TestTokenWipe(t *testing.T) {
	wipe := TokenWipe{
		TokenID:       entity.FromNum(5005),
		AccountID:     entity.FromNum(2001),
		SerialNumbers: []int64{1, 2, 300},
	}
	body := freeze(t, wipe)
	require.Equal(t, hapi.BodyTokenWipe, body.Data.Field)

	fs := fields(t, body.Data.Body)
	assert.Empty(t, fs[3], "zero amount is omitted")
	require.Len(t, fs[4], 1)
	serials, err := fs[4][0].Int64s()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 300}, serials)

	wrong := entity.MustParse("0.0.123-vfmkw")
	wipe.AccountID = wrong
	var mismatch *entity.ChecksumMismatchError
	require.ErrorAs(t, wipe.ValidateChecksums(entity.Testnet), &mismatch)
}

func TestContractDelete(t *testing.T) {
	contract := entity.FromNum(7007)
	account := entity.FromNum(2001)
	other := entity.FromNum(7008)

	body := freeze(t, ContractDelete{ContractID: contract, TransferAccountID: &account, TransferContractID: &other, PermanentRemoval: true})
	require.Equal(t, hapi.BodyContractDeleteInstance, body.Data.Field)
	fs := fields(t, body.Data.Body)
	assert.Equal(t, contract, entityField(t, fs[1][0]))
	assert.Equal(t, account, entityField(t, fs[2][0]))
	assert.Empty(t, fs[3])
	require.Len(t, fs[4], 1)
	assert.Equal(t, uint64(1), fs[4][0].Uint)

	body = freeze(t, ContractDelete{ContractID: contract, TransferContractID: &other})
	fs = fields(t, body.Data.Body)
	assert.Empty(t, fs[2])
	assert.Equal(t, other, entityField(t, fs[3][0]))
	assert.Empty(t, fs[4])
}

func TestTopicDelete(t *testing.T) {
	topic := entity.FromNum(9009)
	body := freeze(t, TopicDelete{TopicID: topic})
	require.Equal(t, hapi.BodyConsensusDeleteTopic, body.Data.Field)
	assert.Equal(t, topic, entityField(t, fields(t, body.Data.Body)[1][0]))
	assert.Equal(t, hapi.MethodDeleteTopic, TopicDelete{}.Method())
}

func TestAccountBalanceQuery(t *testing.T) {
	account := entity.FromNum(2001)
	transport := testutils.NewScriptedTransport(
		testutils.Reply{Response: AccountBalanceResponse(AccountBalance{AccountID: account, Tinybars: 150_000_000})},
	)
	exec := newExecutor(t, transport)

	resp, err := exec.ExecuteQuery(t.Context(), txm.NewQuery(AccountBalanceQuery{AccountID: account}), nil)
	require.NoError(t, err)
	balance, err := ParseAccountBalance(resp)
	require.NoError(t, err)
	assert.Equal(t, AccountBalance{AccountID: account, Tinybars: 150_000_000}, balance)

	calls := transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, hapi.MethodCryptoGetBalance, calls[0].Method)
	q, header, err := hapi.ParseQuery(calls[0].Request)
	require.NoError(t, err)
	assert.Equal(t, hapi.QueryCryptoGetAccountBalance, q.Field)
	assert.Empty(t, header.Payment)
}

func TestAccountBalanceQueryChecksum(t *testing.T) {
	transport := testutils.NewScriptedTransport()
	exec := newExecutor(t, transport)

	query := txm.NewQuery(AccountBalanceQuery{AccountID: entity.MustParse("0.0.123-vfmkw")})
	_, err := exec.ExecuteQuery(t.Context(), query, nil)
	var mismatch *entity.ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Empty(t, transport.Calls())
}

func TestFileContentsQuery(t *testing.T) {
	file := entity.FromNum(111)
	key, err := keystore.GenerateEd25519()
	require.NoError(t, err)

	transport := testutils.NewScriptedTransport(
		testutils.QueryReply(hapi.QueryFileGetContents, hapi.ResponseHeader{ResponseType: hapi.ResponseTypeCostAnswer, Cost: 25}, nil),
		testutils.QueryReply(hapi.QueryFileGetContents, hapi.ResponseHeader{}, FileContentsBody(file, []byte("hello"))),
	)
	exec := newExecutor(t, transport)

	resp, err := exec.ExecuteQuery(t.Context(), txm.NewQuery(FileContentsQuery{FileID: file}), payer{key: key})
	require.NoError(t, err)
	contents, err := ParseFileContents(resp)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), contents)
	assert.Len(t, transport.Calls(), 2)

	_, err = ParseAccountBalance(resp)
	require.Error(t, err)
}
