package txm

import (
	"context"
	"encoding/hex"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// TransactionResponse identifies a transaction accepted by a node.
type TransactionResponse struct {
	NodeID        entity.AccountID
	TransactionID entity.TransactionID
	Hash          []byte

	nodes    []entity.AccountID
	executor *Executor
}

func (r *TransactionResponse) HashHex() string {
	return hex.EncodeToString(r.Hash)
}

// GetReceipt polls for the receipt, asking the submitting node first, and
// fails on a non SUCCESS status.
func (r *TransactionResponse) GetReceipt(ctx context.Context) (*Receipt, error) {
	return r.executor.PollReceipt(ctx, r.TransactionID, moveToFront(r.nodes, r.NodeID), true)
}

// ExecuteTransaction submits the signed transaction.
func (e *Executor) ExecuteTransaction(ctx context.Context, tx *FrozenTransaction) (*TransactionResponse, error) {
	if tx == nil {
		return nil, ErrNotFrozen
	}

	res, err := e.Execute(ctx, Request{
		Method:        tx.Method(),
		Nodes:         tx.NodeAccountIDs(),
		TransactionID: tx.TransactionID(),
		Payload:       tx.Payload,
		Interpret:     interpretTransactionResponse,
	})
	if err != nil {
		return nil, err
	}

	hash, err := tx.Hash(res.Node)
	if err != nil {
		return nil, err
	}
	e.lggr.Infow("transaction submitted", "transactionID", tx.TransactionID().String(), "node", res.Node.String(), "attempts", res.Attempts, "hash", hex.EncodeToString(hash))
	return &TransactionResponse{
		NodeID:        res.Node,
		TransactionID: tx.TransactionID(),
		Hash:          hash,
		nodes:         tx.NodeAccountIDs(),
		executor:      e,
	}, nil
}

func interpretTransactionResponse(response []byte) (hapi.Status, error) {
	var resp hapi.TransactionResponse
	if err := resp.Unmarshal(response); err != nil {
		return 0, err
	}
	return resp.PrecheckCode, nil
}
