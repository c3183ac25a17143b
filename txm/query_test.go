package txm

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/testutils"
)

func costReply(cost uint64) testutils.Reply {
	return testutils.QueryReply(hapi.QueryFileGetContents, hapi.ResponseHeader{PrecheckCode: hapi.StatusOK, ResponseType: hapi.ResponseTypeCostAnswer, Cost: cost}, nil)
}

func contentsReply(status hapi.Status, contents string) testutils.Reply {
	var body []byte
	if contents != "" {
		var fc []byte
		fc = hapi.AppendEntityID(fc, 1, entity.FromNum(111))
		fc = hapi.AppendString(fc, 2, contents)
		body = hapi.AppendMessage(nil, 2, fc)
	}
	return testutils.QueryReply(hapi.QueryFileGetContents, hapi.ResponseHeader{PrecheckCode: status}, body)
}

type decodedQuery struct {
	header    hapi.QueryHeader
	payer     entity.AccountID
	transfers []hapi.Transfer
	node      entity.AccountID
}

func decodeQuery(t *testing.T, request []byte) decodedQuery {
	t.Helper()
	q, header, err := hapi.ParseQuery(request)
	require.NoError(t, err)
	require.Equal(t, hapi.QueryFileGetContents, q.Field)

	out := decodedQuery{header: header}
	if len(header.Payment) == 0 {
		return out
	}
	body := decodeBody(t, header.Payment)
	require.Equal(t, hapi.BodyCryptoTransfer, body.Data.Field)
	out.payer = body.TransactionID.AccountID
	out.node = body.NodeAccountID
	out.transfers, err = hapi.ParseCryptoTransferBody(body.Data.Body)
	require.NoError(t, err)
	return out
}

func TestQueryMaxPaymentExceeded(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(costReply(5), contentsReply(hapi.StatusOK, "x")))
	payer := testPayer{id: payerID, key: newKey(t)}

	q := NewQuery(fileContents{file: entity.FromNum(111)}).SetNodeAccountIDs(node3).SetMaxQueryPayment(1)
	_, err := h.executor.ExecuteQuery(t.Context(), q, payer)

	var exceeded *MaxQueryPaymentExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, uint64(1), exceeded.MaxPayment)
	assert.Equal(t, uint64(5), exceeded.QueryCost)

	// only the cost query went out
	calls := h.transport.Calls()
	require.Len(t, calls, 1)
	quoteReq := decodeQuery(t, calls[0].Request)
	assert.Equal(t, hapi.ResponseTypeCostAnswer, quoteReq.header.ResponseType)
	for _, tr := range quoteReq.transfers {
		assert.Zero(t, tr.Amount)
	}
}

func TestQueryPaidFlow(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(costReply(7), contentsReply(hapi.StatusOK, "hello")))
	payer := testPayer{id: payerID, key: newKey(t)}

	q := NewQuery(fileContents{file: entity.FromNum(111)}).SetNodeAccountIDs(node4, node5).SetMaxQueryPayment(10)
	resp, err := h.executor.ExecuteQuery(t.Context(), q, payer)
	require.NoError(t, err)
	assert.Equal(t, hapi.StatusOK, resp.Header.PrecheckCode)

	calls := h.transport.Calls()
	require.Len(t, calls, 2)
	paid := decodeQuery(t, calls[1].Request)
	assert.Equal(t, hapi.ResponseTypeAnswerOnly, paid.header.ResponseType)
	assert.Equal(t, payerID, paid.payer)

	// the node that quoted the cost is paid, and asked first
	assert.Equal(t, calls[0].Node, calls[1].Node)
	assert.Equal(t, calls[1].Node, paid.node)
	assert.Equal(t, []hapi.Transfer{
		{AccountID: payerID, Amount: -7},
		{AccountID: paid.node, Amount: 7},
	}, paid.transfers)
}

func TestQueryExplicitPaymentSkipsCostQuery(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(contentsReply(hapi.StatusOK, "hello")))
	payer := testPayer{id: payerID, key: newKey(t)}

	q := NewQuery(fileContents{file: entity.FromNum(111)}).SetNodeAccountIDs(node3).SetQueryPayment(3).SetMaxQueryPayment(1)
	_, err := h.executor.ExecuteQuery(t.Context(), q, payer)
	require.NoError(t, err)

	calls := h.transport.Calls()
	require.Len(t, calls, 1)
	paid := decodeQuery(t, calls[0].Request)
	assert.Equal(t, int64(3), paid.transfers[1].Amount)
}

func TestQueryUnderpricedIsSurfaced(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(costReply(2), contentsReply(hapi.StatusInsufficientTxFee, "")))
	payer := testPayer{id: payerID, key: newKey(t)}

	q := NewQuery(fileContents{file: entity.FromNum(111)}).SetNodeAccountIDs(node3, node4)
	_, err := h.executor.ExecuteQuery(t.Context(), q, payer)

	var precheck *PrecheckError
	require.ErrorAs(t, err, &precheck)
	assert.Equal(t, hapi.StatusInsufficientTxFee, precheck.Status)
	assert.Len(t, h.transport.Calls(), 2)
}

func TestQueryFree(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(contentsReply(hapi.StatusOK, "free")))

	_, err := h.executor.ExecuteQuery(t.Context(), NewQuery(fileContents{file: entity.FromNum(1), free: true}), nil)
	require.NoError(t, err)

	calls := h.transport.Calls()
	require.Len(t, calls, 1)
	q := decodeQuery(t, calls[0].Request)
	assert.Empty(t, q.header.Payment)
}

func TestQueryPaidRequiresPayer(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport())
	_, err := h.executor.ExecuteQuery(t.Context(), NewQuery(fileContents{}), nil)
	require.ErrorIs(t, err, ErrNoPayerSet)
}

func TestQueryPaymentAboveTransferLimit(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(contentsReply(hapi.StatusOK, "hello")))
	payer := testPayer{id: payerID, key: newKey(t)}

	q := NewQuery(fileContents{file: entity.FromNum(111)}).SetNodeAccountIDs(node3).SetQueryPayment(math.MaxInt64 + 1)
	_, err := h.executor.ExecuteQuery(t.Context(), q, payer)
	require.ErrorIs(t, err, ErrQueryPaymentTooLarge)
	assert.Empty(t, h.transport.Calls())
}

func TestQueryWhenEveryNodeIsSuspect(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(contentsReply(hapi.StatusOK, "free")))
	for _, n := range []entity.AccountID{node3, node4, node5} {
		h.network.MarkSuspect(n, time.Minute)
	}

	_, err := h.executor.ExecuteQuery(t.Context(), NewQuery(fileContents{file: entity.FromNum(1), free: true}), nil)
	require.NoError(t, err)
	assert.Len(t, h.transport.Calls(), 1)
}
