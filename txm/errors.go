package txm

import (
	"errors"
	"fmt"
	"time"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// Validation errors. They are returned before anything is sent.
var (
	ErrNoPayerSet           = errors.New("no payer account set")
	ErrAlreadyFrozen        = errors.New("transaction is already frozen and signed")
	ErrNotFrozen            = errors.New("transaction is not frozen")
	ErrNoNodes              = errors.New("no nodes available")
	ErrInvalidValidDuration = errors.New("invalid transaction valid duration")
	ErrMemoTooLong          = errors.New("memo exceeds 100 bytes")
	ErrQueryPaymentTooLarge = errors.New("query payment exceeds the largest transferable amount")
)

// PrecheckError is a permanent rejection by a node. The transaction id is
// carried so the caller can look the transaction up out of band.
type PrecheckError struct {
	Status        hapi.Status
	TransactionID entity.TransactionID
	Node          entity.AccountID
	Method        string
}

func (e *PrecheckError) Error() string {
	if e.TransactionID.IsZero() {
		return fmt.Sprintf("%s failed precheck with status %s on node %s", e.Method, e.Status, e.Node)
	}
	return fmt.Sprintf("transaction %s failed precheck with status %s on node %s", e.TransactionID, e.Status, e.Node)
}

// RetriesExhaustedError is returned when the attempt budget or the deadline
// ran out while only retryable outcomes were observed.
type RetriesExhaustedError struct {
	Method        string
	TransactionID entity.TransactionID
	Attempts      int
	Reason        string
	// LastStatus is the last precheck status received, if any node answered.
	LastStatus *hapi.Status
	// LastErr is the last transport error, if any.
	LastErr error
}

func (e *RetriesExhaustedError) Error() string {
	msg := fmt.Sprintf("%s: %s after %d attempts", e.Method, e.Reason, e.Attempts)
	if !e.TransactionID.IsZero() {
		msg = fmt.Sprintf("transaction %s: %s after %d attempts", e.TransactionID, e.Reason, e.Attempts)
	}
	if e.LastStatus != nil {
		msg += fmt.Sprintf(", last status %s", *e.LastStatus)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(", last error: %v", e.LastErr)
	}
	return msg
}

func (e *RetriesExhaustedError) Unwrap() error { return e.LastErr }

// MaxQueryPaymentExceededError is returned when the cost quoted by a node is
// more than the caller allowed. No paid request is sent.
type MaxQueryPaymentExceededError struct {
	Method     string
	MaxPayment uint64
	QueryCost  uint64
}

func (e *MaxQueryPaymentExceededError) Error() string {
	return fmt.Sprintf("cost of %s (%d tinybars) exceeds max query payment (%d tinybars)", e.Method, e.QueryCost, e.MaxPayment)
}

// ReceiptStatusError is a receipt that reached consensus with a failure status.
type ReceiptStatusError struct {
	Status        hapi.Status
	TransactionID entity.TransactionID
	Receipt       *Receipt
}

func (e *ReceiptStatusError) Error() string {
	return fmt.Sprintf("receipt for transaction %s contained error status %s", e.TransactionID, e.Status)
}

// ReceiptTimeoutError means no terminal receipt was observed before the
// deadline. The transaction may still reach consensus.
type ReceiptTimeoutError struct {
	TransactionID entity.TransactionID
	Polls         int
	Elapsed       time.Duration
	LastStatus    hapi.Status
}

func (e *ReceiptTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for receipt of transaction %s after %d polls (%s), last status %s", e.TransactionID, e.Polls, e.Elapsed, e.LastStatus)
}
