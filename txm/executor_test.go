package txm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/testutils"
)

func TestExecuteRetriesThenAccepted(t *testing.T) {
	const retries = 3
	delays := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

	var replies []testutils.Reply
	for range retries {
		replies = append(replies, testutils.TxReply(hapi.StatusBusy))
	}
	replies = append(replies, testutils.TxReply(hapi.StatusOK))

	h := newHarness(t, nil, testutils.NewScriptedTransport(replies...))
	h.executor.newBackoff = func() backoff.BackOff { return &scriptedBackoff{delays: delays} }
	frozen := frozenPause(t, h, newKey(t), node3, node4)

	resp, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	require.NoError(t, err)

	calls := h.transport.Calls()
	require.Len(t, calls, retries+1)
	assert.Equal(t, delays, h.clock.Sleeps())

	var total time.Duration
	for _, d := range delays {
		total += d
	}
	assert.GreaterOrEqual(t, h.clock.Now().Sub(t0), total)

	// round robin across the target nodes
	assert.Equal(t, []entity.AccountID{node3, node4, node3, node4}, []entity.AccountID{calls[0].Node, calls[1].Node, calls[2].Node, calls[3].Node})
	assert.Equal(t, node4, resp.NodeID)
	assert.Equal(t, frozen.TransactionID(), resp.TransactionID)
	expectedHash, err := frozen.Hash(node4)
	require.NoError(t, err)
	assert.Equal(t, expectedHash, resp.Hash)

	// every resubmission carries the same transaction id
	for _, c := range calls {
		assert.Equal(t, frozen.TransactionID(), decodeBody(t, c.Request).TransactionID)
		assert.Equal(t, hapi.MethodPauseToken, c.Method)
	}
}

func TestExecutePermanentRejection(t *testing.T) {
	lggr, observed := logger.TestObserved(t, zapcore.DebugLevel)
	h := newHarness(t, lggr, testutils.NewScriptedTransport(testutils.TxReply(hapi.StatusInvalidSignature)))
	frozen := frozenPause(t, h, newKey(t), node3, node4)

	_, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	var precheck *PrecheckError
	require.ErrorAs(t, err, &precheck)
	assert.Equal(t, hapi.StatusInvalidSignature, precheck.Status)
	assert.Equal(t, frozen.TransactionID(), precheck.TransactionID)
	assert.Equal(t, node3, precheck.Node)

	assert.Len(t, h.transport.Calls(), 1)
	assert.Empty(t, h.clock.Sleeps())
	assert.Equal(t, 1, observed.FilterMessageSnippet("permanent precheck rejection").Len())
}

func TestExecuteTransportFailureRotatesWithoutDelay(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(
		testutils.ErrReply(errors.New("connection refused")),
		testutils.TxReply(hapi.StatusOK),
	))
	frozen := frozenPause(t, h, newKey(t), node3, node4)

	resp, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	require.NoError(t, err)
	assert.Equal(t, node4, resp.NodeID)
	assert.Empty(t, h.clock.Sleeps())
	assert.Equal(t, []entity.AccountID{node3}, h.network.Marked())
}

func TestExecuteNodeRetry(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(
		testutils.TxReply(hapi.StatusInvalidNodeAccount),
		testutils.TxReply(hapi.StatusSuccess),
	))
	frozen := frozenPause(t, h, newKey(t), node3, node4)

	resp, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	require.NoError(t, err)
	assert.Equal(t, node4, resp.NodeID)
	assert.Empty(t, h.clock.Sleeps())
	assert.Equal(t, []entity.AccountID{node3}, h.network.Marked())
}

func TestExecuteSkipsSuspectNodes(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(testutils.TxReply(hapi.StatusOK)))
	h.network.MarkSuspect(node3, time.Minute)
	frozen := frozenPause(t, h, newKey(t), node3, node4)

	resp, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	require.NoError(t, err)
	assert.Equal(t, node4, resp.NodeID)

	// with every target suspect the engine still tries them
	h.network.MarkSuspect(node4, time.Minute)
	_, err = h.executor.ExecuteTransaction(t.Context(), frozen)
	require.NoError(t, err)
}

func TestExecuteMaxAttempts(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(testutils.TxReply(hapi.StatusBusy)), func(c *Config) {
		c.MaxAttempts = 4
	})
	frozen := frozenPause(t, h, newKey(t), node3)

	_, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	require.NotNil(t, exhausted.LastStatus)
	assert.Equal(t, hapi.StatusBusy, *exhausted.LastStatus)
	assert.Equal(t, frozen.TransactionID(), exhausted.TransactionID)
	assert.True(t, IsRetriesExhausted(err))
	assert.Len(t, h.transport.Calls(), 4)
	assert.Len(t, h.clock.Sleeps(), 3)
}

func TestExecuteDeadline(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport(testutils.TxReply(hapi.StatusPlatformNotActive)), func(c *Config) {
		c.MaxAttempts = 1000
		c.RequestTimeout = 10 * time.Second
		c.GrpcDeadline = time.Second
	})
	h.executor.newBackoff = func() backoff.BackOff { return backoff.NewConstantBackOff(3 * time.Second) }
	frozen := frozenPause(t, h, newKey(t), node3)

	_, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "deadline exceeded", exhausted.Reason)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.LessOrEqual(t, h.clock.Now().Sub(t0), 10*time.Second)
}

func TestExecuteTransportErrorsExhausted(t *testing.T) {
	boom := errors.New("unavailable")
	h := newHarness(t, nil, testutils.NewScriptedTransport(testutils.ErrReply(boom)), func(c *Config) {
		c.MaxAttempts = 3
	})
	frozen := frozenPause(t, h, newKey(t), node3, node4)

	_, err := h.executor.ExecuteTransaction(t.Context(), frozen)
	require.ErrorIs(t, err, boom)
	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Nil(t, exhausted.LastStatus)
}

func TestExecuteInflightCallSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	transport := testutils.NewScriptedTransport()
	var inflightErr error
	transport.Handler = func(testutils.Call) testutils.Reply {
		cancel()
		return testutils.TxReply(hapi.StatusOK)
	}
	h := newHarness(t, nil, transport)
	h.executor.transport = transportFunc(func(callCtx context.Context, node entity.AccountID, method string, req []byte) ([]byte, error) {
		resp, err := transport.Send(callCtx, node, method, req)
		inflightErr = callCtx.Err()
		return resp, err
	})
	frozen := frozenPause(t, h, newKey(t), node3)

	_, err := h.executor.ExecuteTransaction(ctx, frozen)
	require.NoError(t, err)
	require.NoError(t, inflightErr)

	// cancelled before sending, nothing goes out
	_, err = h.executor.ExecuteTransaction(ctx, frozen)
	require.Error(t, err)
	assert.Len(t, transport.Calls(), 1)
}

func TestExecuteNoNodes(t *testing.T) {
	h := newHarness(t, nil, testutils.NewScriptedTransport())
	_, err := h.executor.Execute(t.Context(), Request{Method: "m"})
	require.ErrorIs(t, err, ErrNoNodes)
	_, err = h.executor.ExecuteTransaction(t.Context(), nil)
	require.ErrorIs(t, err, ErrNotFrozen)
}

type transportFunc func(ctx context.Context, node entity.AccountID, method string, req []byte) ([]byte, error)

func (f transportFunc) Send(ctx context.Context, node entity.AccountID, method string, req []byte) ([]byte, error) {
	return f(ctx, node, method, req)
}
