package txm

import (
	"context"
	"fmt"
	"math"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// QueryData is the operation specific part of a query.
type QueryData interface {
	// WireQuery encodes the query with the given header.
	WireQuery(header hapi.QueryHeader) hapi.QueryData
	// Method is the full gRPC method answering the query.
	Method() string
	// IsPaymentRequired is false for free queries, which are sent without a payment.
	IsPaymentRequired() bool
}

// QueryPayer funds paid queries.
type QueryPayer interface {
	AccountID() entity.AccountID
	SignTransaction(ctx context.Context, tx *FrozenTransaction) error
}

// Query is a query builder with its payment policy.
type Query struct {
	data           QueryData
	nodeAccountIDs []entity.AccountID
	maxPayment     *uint64
	payment        *uint64
}

func NewQuery(data QueryData) *Query {
	return &Query{data: data}
}

func (q *Query) Data() QueryData { return q.data }

func (q *Query) SetNodeAccountIDs(nodes ...entity.AccountID) *Query {
	q.nodeAccountIDs = nodes
	return q
}

// SetMaxQueryPayment caps the tinybars the query may cost when the cost is
// obtained from a node.
func (q *Query) SetMaxQueryPayment(tinybars uint64) *Query {
	q.maxPayment = &tinybars
	return q
}

// SetQueryPayment pays exactly tinybars, skipping cost estimation.
func (q *Query) SetQueryPayment(tinybars uint64) *Query {
	q.payment = &tinybars
	return q
}

// queryPayment is a transfer of amount from the payer to whichever node the
// payment is built for.
type queryPayment struct {
	payer  entity.AccountID
	amount int64
}

func (p queryPayment) WireBody(node entity.AccountID, _ entity.TransactionID) hapi.TransactionData {
	return hapi.CryptoTransferBody([]hapi.Transfer{
		{AccountID: p.payer, Amount: -p.amount},
		{AccountID: node, Amount: p.amount},
	})
}

func (p queryPayment) Method() string { return hapi.MethodCryptoTransfer }

// ExecuteQuery runs q. Free queries are sent as is. Paid queries are sent
// with the explicit payment if one is set, otherwise a cost quote is requested
// first and its quote is checked against the max payment before paying.
// An underpriced paid attempt is surfaced, never re-estimated.
func (e *Executor) ExecuteQuery(ctx context.Context, q *Query, payer QueryPayer) (*hapi.Response, error) {
	if v, ok := q.data.(ChecksumValidator); ok && !e.cfg.LedgerID.IsEmpty() {
		if err := v.ValidateChecksums(e.cfg.LedgerID); err != nil {
			return nil, err
		}
	}
	nodes, err := e.queryNodes(q)
	if err != nil {
		return nil, err
	}
	method := q.data.Method()

	if !q.data.IsPaymentRequired() {
		res, err := e.Execute(ctx, e.queryRequest(q.data, nodes, func(entity.AccountID) (hapi.QueryHeader, error) {
			return hapi.QueryHeader{ResponseType: hapi.ResponseTypeAnswerOnly}, nil
		}))
		if err != nil {
			return nil, err
		}
		return decodeResponse(res.Response)
	}

	if payer == nil || payer.AccountID().IsZero() {
		return nil, ErrNoPayerSet
	}

	var cost uint64
	if q.payment != nil {
		cost = *q.payment
	} else {
		quote, node, err := e.quoteCost(ctx, q.data, nodes, payer)
		if err != nil {
			return nil, err
		}
		maxPayment := e.cfg.DefaultMaxQueryPayment
		if q.maxPayment != nil {
			maxPayment = *q.maxPayment
		}
		if quote > maxPayment {
			promExecutionFailures.WithLabelValues(method, "max_query_payment").Inc()
			return nil, &MaxQueryPaymentExceededError{Method: method, MaxPayment: maxPayment, QueryCost: quote}
		}
		cost = quote
		nodes = moveToFront(nodes, node)
	}
	if cost > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d tinybars", ErrQueryPaymentTooLarge, cost)
	}

	res, err := e.paidQuery(ctx, q.data, nodes, payer, cost, hapi.ResponseTypeAnswerOnly)
	if err != nil {
		return nil, err
	}
	promQueryCost.WithLabelValues(method).Set(float64(cost))
	return decodeResponse(res.Response)
}

// quoteCost sends the query with a zero amount payment asking for the cost only.
func (e *Executor) quoteCost(ctx context.Context, data QueryData, nodes []entity.AccountID, payer QueryPayer) (uint64, entity.AccountID, error) {
	method := data.Method()
	res, err := e.paidQuery(ctx, data, nodes, payer, 0, hapi.ResponseTypeCostAnswer)
	if err != nil {
		return 0, entity.AccountID{}, fmt.Errorf("failed to get cost of %s: %w", method, err)
	}
	resp, err := decodeResponse(res.Response)
	if err != nil {
		return 0, entity.AccountID{}, err
	}
	e.lggr.Debugw("query cost quoted", "method", method, "node", res.Node.String(), "cost", resp.Header.Cost)
	return resp.Header.Cost, res.Node, nil
}

func (e *Executor) paidQuery(ctx context.Context, data QueryData, nodes []entity.AccountID, payer QueryPayer, amount uint64, responseType hapi.ResponseType) (*Result, error) {
	payment := NewTransaction(queryPayment{payer: payer.AccountID(), amount: int64(amount)}).
		SetNodeAccountIDs(nodes...)
	frozen, err := payment.Freeze(e.FreezeDefaults(payer.AccountID()))
	if err != nil {
		return nil, fmt.Errorf("failed to freeze query payment: %w", err)
	}
	if err := payer.SignTransaction(ctx, frozen); err != nil {
		return nil, fmt.Errorf("failed to sign query payment: %w", err)
	}

	req := e.queryRequest(data, nodes, func(node entity.AccountID) (hapi.QueryHeader, error) {
		tx, err := frozen.Payload(node)
		if err != nil {
			return hapi.QueryHeader{}, err
		}
		return hapi.QueryHeader{Payment: tx, ResponseType: responseType}, nil
	})
	req.TransactionID = frozen.TransactionID()
	return e.Execute(ctx, req)
}

func (e *Executor) queryRequest(data QueryData, nodes []entity.AccountID, header func(entity.AccountID) (hapi.QueryHeader, error)) Request {
	return Request{
		Method: data.Method(),
		Nodes:  nodes,
		Payload: func(node entity.AccountID) ([]byte, error) {
			h, err := header(node)
			if err != nil {
				return nil, err
			}
			return data.WireQuery(h).Marshal(), nil
		},
		Interpret: func(response []byte) (hapi.Status, error) {
			resp, err := decodeResponse(response)
			if err != nil {
				return 0, err
			}
			return resp.Header.PrecheckCode, nil
		},
	}
}

func (e *Executor) queryNodes(q *Query) ([]entity.AccountID, error) {
	if len(q.nodeAccountIDs) > 0 {
		nodes := make([]entity.AccountID, len(q.nodeAccountIDs))
		for i, n := range q.nodeAccountIDs {
			nodes[i] = n.WithoutChecksum()
		}
		return nodes, nil
	}
	return SelectNodes(e.CandidateNodes(), e.cfg.MaxNodesPerTransaction)
}

func decodeResponse(b []byte) (*hapi.Response, error) {
	resp := &hapi.Response{}
	if err := resp.Unmarshal(b); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

func moveToFront(nodes []entity.AccountID, first entity.AccountID) []entity.AccountID {
	out := []entity.AccountID{first}
	for _, n := range nodes {
		if !n.Equal(first) {
			out = append(out, n)
		}
	}
	return out
}
