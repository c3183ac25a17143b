package txm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
)

// Transport sends one encoded request to one node.
type Transport interface {
	Send(ctx context.Context, node entity.AccountID, method string, request []byte) ([]byte, error)
}

// Network is the view of node health used for selection.
type Network interface {
	HealthyNodes() []entity.AccountID
	// NodeAccountIDs lists every known node, healthy or not.
	NodeAccountIDs() []entity.AccountID
	IsHealthy(node entity.AccountID) bool
	MarkSuspect(node entity.AccountID, d time.Duration)
}

// Request is one logical rpc driven across the target nodes until a node
// accepts it or the budget runs out.
type Request struct {
	Method string
	Nodes  []entity.AccountID
	// TransactionID is reported in errors and logs. It may be zero for free queries.
	TransactionID entity.TransactionID
	// Payload encodes the request for one node.
	Payload func(node entity.AccountID) ([]byte, error)
	// Interpret extracts the precheck status from a response.
	Interpret func(response []byte) (hapi.Status, error)
}

// Result is the accepted response of an execution.
type Result struct {
	Node     entity.AccountID
	Status   hapi.Status
	Response []byte
	Attempts int
}

type Executor struct {
	lggr      logger.Logger
	cfg       Config
	network   Network
	transport Transport
	ids       *entity.TransactionIDGenerator

	// overridable for testing
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
	newBackoff func() backoff.BackOff
}

type ExecutorOption func(*Executor)

// WithClock replaces the clock and the sleep used between attempts.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) ExecutorOption {
	return func(e *Executor) {
		e.now = now
		e.sleep = sleep
	}
}

// WithBackoff replaces the retry backoff policy.
func WithBackoff(newBackoff func() backoff.BackOff) ExecutorOption {
	return func(e *Executor) { e.newBackoff = newBackoff }
}

func NewExecutor(lggr logger.Logger, cfg Config, network Network, transport Transport, opts ...ExecutorOption) *Executor {
	e := &Executor{
		lggr:      logger.Named(lggr, "Executor"),
		cfg:       cfg,
		network:   network,
		transport: transport,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	e.newBackoff = e.exponentialBackoff
	for _, opt := range opts {
		opt(e)
	}
	e.ids = entity.NewTransactionIDGenerator(e.now)
	return e
}

func (e *Executor) Config() Config { return e.cfg }

// FreezeDefaults returns the defaults for freezing a transaction paid by payer.
func (e *Executor) FreezeDefaults(payer entity.AccountID) FreezeDefaults {
	return FreezeDefaults{
		Payer:             payer,
		Nodes:             e.CandidateNodes(),
		MaxNodes:          e.cfg.MaxNodesPerTransaction,
		ValidDuration:     e.cfg.TransactionValidDuration,
		MaxTransactionFee: e.cfg.DefaultMaxTransactionFee,
		Ledger:            e.cfg.LedgerID,
		IDs:               e.ids,
	}
}

// CandidateNodes returns the healthy nodes, or every known node when all of
// them are suspect.
func (e *Executor) CandidateNodes() []entity.AccountID {
	if nodes := e.network.HealthyNodes(); len(nodes) > 0 {
		return nodes
	}
	return e.network.NodeAccountIDs()
}

func (e *Executor) exponentialBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.MinBackoff
	b.MaxInterval = e.cfg.MaxBackoff
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by the request deadline
	b.Reset()
	return b
}

type state int

const (
	stateSelectNode state = iota
	stateSend
	stateInterpret
	stateBackoff
	stateDone
)

// attempt is the transient state of one Execute call.
type attempt struct {
	executionID string
	start       time.Time
	deadline    time.Time
	count       int
	cursor      int
	node        entity.AccountID
	response    []byte
	lastStatus  *hapi.Status
	lastErr     error
	result      *Result
	err         error
}

// Execute drives req through node selection, sending, precheck
// interpretation and backoff until it is accepted or fails. The caller's
// deadline is checked between steps. A call already in flight is bounded by
// GrpcDeadline only, so Execute may overrun the deadline by that much.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if len(req.Nodes) == 0 {
		return nil, ErrNoNodes
	}

	a := &attempt{executionID: uuid.NewString(), start: e.now()}
	a.deadline = a.start.Add(e.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(a.deadline) {
		a.deadline = d
	}
	bo := e.newBackoff()
	lggr := logger.With(e.lggr, "executionID", a.executionID, "method", req.Method, "transactionID", req.TransactionID.String())

	st := stateSelectNode
	for st != stateDone {
		switch st {
		case stateSelectNode:
			st = e.selectNode(ctx, req, a)
		case stateSend:
			st = e.send(ctx, lggr, req, a)
		case stateInterpret:
			st = e.interpret(lggr, req, a)
		case stateBackoff:
			st = e.backoff(ctx, lggr, req, a, bo)
		}
	}

	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func (e *Executor) selectNode(ctx context.Context, req Request, a *attempt) state {
	if reason := e.exhausted(ctx, a); reason != "" {
		a.err = e.fail(req, a, reason)
		return stateDone
	}

	n := len(req.Nodes)
	for range n {
		node := req.Nodes[a.cursor%n]
		a.cursor++
		if e.network.IsHealthy(node) {
			a.node = node
			return stateSend
		}
	}
	// every target is suspect, keep rotating rather than giving up
	a.node = req.Nodes[a.cursor%n]
	a.cursor++
	return stateSend
}

func (e *Executor) send(ctx context.Context, lggr logger.Logger, req Request, a *attempt) state {
	payload, err := req.Payload(a.node)
	if err != nil {
		a.err = fmt.Errorf("failed to build request for node %s: %w", a.node, err)
		return stateDone
	}

	a.count++
	promExecutionAttempts.WithLabelValues(req.Method, a.node.String()).Inc()

	// the caller's cancellation must not abort a submission mid-flight
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.GrpcDeadline)
	defer cancel()

	lggr.Debugw("sending request", "node", a.node.String(), "attempt", a.count)
	resp, err := e.transport.Send(attemptCtx, a.node, req.Method, payload)
	if err != nil {
		lggr.Warnw("transport failure, trying next node", "node", a.node.String(), "attempt", a.count, "err", err)
		a.lastErr = err
		e.network.MarkSuspect(a.node, e.cfg.NodeSuspectWindow)
		return stateSelectNode
	}
	a.response = resp
	return stateInterpret
}

func (e *Executor) interpret(lggr logger.Logger, req Request, a *attempt) state {
	status, err := req.Interpret(a.response)
	if err != nil {
		lggr.Warnw("malformed response, trying next node", "node", a.node.String(), "attempt", a.count, "err", err)
		a.lastErr = fmt.Errorf("malformed response from node %s: %w", a.node, err)
		e.network.MarkSuspect(a.node, e.cfg.NodeSuspectWindow)
		return stateSelectNode
	}
	a.lastStatus = &status
	promPrecheckStatus.WithLabelValues(req.Method, status.String()).Inc()

	switch hapi.Classify(status) {
	case hapi.ClassAccepted:
		lggr.Debugw("request accepted", "node", a.node.String(), "attempt", a.count, "status", status.String())
		a.result = &Result{Node: a.node, Status: status, Response: a.response, Attempts: a.count}
		return stateDone
	case hapi.ClassRetryable:
		lggr.Debugw("retryable precheck status", "node", a.node.String(), "attempt", a.count, "status", status.String())
		return stateBackoff
	case hapi.ClassNodeRetry:
		lggr.Warnw("node rejected itself as target", "node", a.node.String(), "attempt", a.count, "status", status.String())
		e.network.MarkSuspect(a.node, e.cfg.NodeSuspectWindow)
		return stateSelectNode
	default:
		lggr.Infow("permanent precheck rejection", "node", a.node.String(), "attempt", a.count, "status", status.String())
		promExecutionFailures.WithLabelValues(req.Method, "precheck").Inc()
		a.err = &PrecheckError{Status: status, TransactionID: req.TransactionID, Node: a.node, Method: req.Method}
		return stateDone
	}
}

func (e *Executor) backoff(ctx context.Context, lggr logger.Logger, req Request, a *attempt, bo backoff.BackOff) state {
	if reason := e.exhausted(ctx, a); reason != "" {
		a.err = e.fail(req, a, reason)
		return stateDone
	}

	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		a.err = e.fail(req, a, "backoff stopped")
		return stateDone
	}
	if e.now().Add(delay).After(a.deadline) {
		a.err = e.fail(req, a, "deadline exceeded")
		return stateDone
	}

	lggr.Debugw("backing off", "attempt", a.count, "delay", delay)
	e.sleep(ctx, delay)
	return stateSelectNode
}

// exhausted returns why no further attempt may be made, or "" if one may.
func (e *Executor) exhausted(ctx context.Context, a *attempt) string {
	switch {
	case ctx.Err() != nil:
		return ctx.Err().Error()
	case a.count >= e.cfg.MaxAttempts:
		return "max attempts reached"
	case !e.now().Before(a.deadline):
		return "deadline exceeded"
	}
	return ""
}

func (e *Executor) fail(req Request, a *attempt, reason string) error {
	promExecutionFailures.WithLabelValues(req.Method, "exhausted").Inc()
	e.lggr.Warnw("execution failed", "executionID", a.executionID, "method", req.Method, "transactionID", req.TransactionID.String(), "attempts", a.count, "reason", reason, "elapsed", e.now().Sub(a.start))
	return &RetriesExhaustedError{
		Method:        req.Method,
		TransactionID: req.TransactionID,
		Attempts:      a.count,
		Reason:        reason,
		LastStatus:    a.lastStatus,
		LastErr:       a.lastErr,
	}
}

// IsRetriesExhausted reports whether err ended an execution because of the budget.
func IsRetriesExhausted(err error) bool {
	var target *RetriesExhaustedError
	return errors.As(err, &target)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
