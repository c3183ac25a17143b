package txm

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// Receipt is the consensus outcome of a transaction.
type Receipt struct {
	TransactionID entity.TransactionID
	Node          entity.AccountID
	hapi.TransactionReceipt
}

// PollReceipt queries the receipt of id until it is terminal or
// ReceiptTimeout elapses. Nodes are tried in order, falling back to the next
// one when a node is unreachable. Pending receipts are polled again after a
// fixed ReceiptPollInterval. With validateStatus a terminal non SUCCESS
// status is returned as a *ReceiptStatusError. Cancelling ctx ends polling with
// the wrapped context error.
func (e *Executor) PollReceipt(ctx context.Context, id entity.TransactionID, nodes []entity.AccountID, validateStatus bool) (*Receipt, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	start := e.now()
	deadline := start.Add(e.cfg.ReceiptTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ticker := backoff.WithContext(backoff.NewConstantBackOff(e.cfg.ReceiptPollInterval), ctx)
	query := hapi.TransactionGetReceiptQuery(id).Marshal()
	lggr := logger.With(e.lggr, "transactionID", id.String())

	lastStatus := hapi.StatusUnknown
	cursor := 0
	for polls := 1; ; polls++ {
		receipt, node, err := e.queryReceipt(ctx, id, query, nodes, &cursor)
		switch {
		case err != nil:
			return nil, err
		case receipt == nil:
			lggr.Debugw("receipt nodes unreachable", "poll", polls)
		case receipt.Status == hapi.StatusUnknown:
			lastStatus = receipt.Status
			lggr.Debugw("receipt pending", "node", node.String(), "poll", polls)
		default:
			r := &Receipt{TransactionID: id, Node: node, TransactionReceipt: *receipt}
			if validateStatus && r.Status != hapi.StatusSuccess {
				return nil, &ReceiptStatusError{Status: r.Status, TransactionID: id, Receipt: r}
			}
			lggr.Debugw("receipt received", "node", node.String(), "poll", polls, "status", r.Status.String())
			return r, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("polling receipt of transaction %s: %w", id, ctx.Err())
		}
		next := ticker.NextBackOff()
		if next == backoff.Stop || e.now().Add(next).After(deadline) {
			promExecutionFailures.WithLabelValues(hapi.MethodGetTransactionReceipts, "receipt_timeout").Inc()
			return nil, &ReceiptTimeoutError{TransactionID: id, Polls: polls, Elapsed: e.now().Sub(start), LastStatus: lastStatus}
		}
		e.sleep(ctx, next)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("polling receipt of transaction %s: %w", id, ctx.Err())
		}
	}
}

// queryReceipt asks the nodes starting at cursor for the receipt. A pending
// receipt has status UNKNOWN. It returns a nil receipt without error when no
// node answered.
func (e *Executor) queryReceipt(ctx context.Context, id entity.TransactionID, query []byte, nodes []entity.AccountID, cursor *int) (*hapi.TransactionReceipt, entity.AccountID, error) {
	for range nodes {
		node := nodes[*cursor%len(nodes)]

		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.GrpcDeadline)
		raw, err := e.transport.Send(attemptCtx, node, hapi.MethodGetTransactionReceipts, query)
		cancel()
		promExecutionAttempts.WithLabelValues(hapi.MethodGetTransactionReceipts, node.String()).Inc()
		if err != nil {
			e.lggr.Warnw("receipt query failed, trying next node", "node", node.String(), "err", err)
			e.network.MarkSuspect(node, e.cfg.NodeSuspectWindow)
			*cursor++
			continue
		}

		resp, err := decodeResponse(raw)
		if err != nil {
			e.lggr.Warnw("malformed receipt response, trying next node", "node", node.String(), "err", err)
			*cursor++
			continue
		}

		precheck := resp.Header.PrecheckCode
		promPrecheckStatus.WithLabelValues(hapi.MethodGetTransactionReceipts, precheck.String()).Inc()
		if hapi.IsReceiptPending(precheck) {
			return &hapi.TransactionReceipt{Status: hapi.StatusUnknown}, node, nil
		}
		if precheck != hapi.StatusOK {
			return nil, node, &PrecheckError{Status: precheck, TransactionID: id, Node: node, Method: hapi.MethodGetTransactionReceipts}
		}

		receipt, err := hapi.ParseTransactionGetReceiptResponse(resp)
		if err != nil {
			return nil, node, fmt.Errorf("failed to decode receipt from node %s: %w", node, err)
		}
		return receipt, node, nil
	}
	return nil, entity.AccountID{}, nil
}
