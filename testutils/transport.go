package testutils

import (
	"context"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/network"
)

// Call is one request seen by a ScriptedTransport.
type Call struct {
	Node    entity.AccountID
	Method  string
	Request []byte
}

// Reply is the scripted outcome of one call.
type Reply struct {
	Response []byte
	Err      error
}

// ScriptedTransport answers calls with the scripted replies in order. Once
// the script is used up Handler answers, or the last reply repeats.
type ScriptedTransport struct {
	Handler func(Call) Reply

	mu     sync.Mutex
	script []Reply
	last   *Reply
	calls  []Call
}

func NewScriptedTransport(replies ...Reply) *ScriptedTransport {
	return &ScriptedTransport{script: replies}
}

func (s *ScriptedTransport) Send(ctx context.Context, node entity.AccountID, method string, request []byte) ([]byte, error) {
	call := Call{Node: node, Method: method, Request: request}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var reply Reply
	switch {
	case len(s.script) > 0:
		reply = s.script[0]
		s.script = s.script[1:]
		s.last = &reply
	case s.Handler != nil:
		handler := s.Handler
		s.mu.Unlock()
		reply = handler(call)
		return reply.Response, reply.Err
	case s.last != nil:
		reply = *s.last
	}
	s.mu.Unlock()

	return reply.Response, reply.Err
}

// Dialer returns a network.Dialer whose channels forward to s.
func (s *ScriptedTransport) Dialer() network.Dialer {
	return func(node network.Node) (network.Channel, error) {
		return &scriptedChannel{node: node.AccountID, transport: s}, nil
	}
}

type scriptedChannel struct {
	node      entity.AccountID
	transport *ScriptedTransport
}

func (c *scriptedChannel) Invoke(ctx context.Context, method string, request []byte) ([]byte, error) {
	return c.transport.Send(ctx, c.node, method, request)
}

func (c *scriptedChannel) Close() error { return nil }

// Calls returns a copy of every call received.
func (s *ScriptedTransport) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// TxReply is a transaction precheck response with status.
func TxReply(status hapi.Status) Reply {
	resp := hapi.TransactionResponse{PrecheckCode: status}
	return Reply{Response: resp.Marshal()}
}

// QueryReply is a query response with the given header and query specific body.
func QueryReply(field protowire.Number, header hapi.ResponseHeader, body []byte) Reply {
	resp := hapi.Response{Field: field, Header: header, Body: body}
	return Reply{Response: resp.Marshal()}
}

// ReceiptReply is a receipt query response.
func ReceiptReply(precheck hapi.Status, receipt *hapi.TransactionReceipt) Reply {
	return Reply{Response: hapi.ReceiptResponse(precheck, receipt)}
}

// ErrReply is a transport failure.
func ErrReply(err error) Reply {
	return Reply{Err: err}
}

// FakeClock is a manual clock whose Sleep advances time instantly.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
}

// Sleeps returns every duration passed to Sleep.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// StaticNetwork is a fixed node set with manual suspect marking and no expiry.
type StaticNetwork struct {
	mu      sync.Mutex
	nodes   []entity.AccountID
	suspect map[string]bool
	marked  []entity.AccountID
}

func NewStaticNetwork(nodes ...entity.AccountID) *StaticNetwork {
	return &StaticNetwork{nodes: nodes, suspect: map[string]bool{}}
}

func (n *StaticNetwork) HealthyNodes() []entity.AccountID {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []entity.AccountID
	for _, id := range n.nodes {
		if !n.suspect[id.String()] {
			out = append(out, id)
		}
	}
	return out
}

func (n *StaticNetwork) NodeAccountIDs() []entity.AccountID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entity.AccountID(nil), n.nodes...)
}

func (n *StaticNetwork) IsHealthy(node entity.AccountID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.suspect[node.String()]
}

func (n *StaticNetwork) MarkSuspect(node entity.AccountID, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspect[node.String()] = true
	n.marked = append(n.marked, node)
}

// Marked returns every node passed to MarkSuspect, in order.
func (n *StaticNetwork) Marked() []entity.AccountID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]entity.AccountID(nil), n.marked...)
}
