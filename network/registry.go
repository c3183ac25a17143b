package network

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

var ErrNodeNotFound = errors.New("node not found")

// Node is a consensus node reachable over gRPC.
type Node struct {
	Name      string
	AccountID entity.AccountID
	URL       *url.URL
}

func (n Node) String() string {
	if n.Name != "" {
		return fmt.Sprintf("%s(%s)", n.Name, n.AccountID)
	}
	return n.AccountID.String()
}

// Channel is a shared transport handle to one node. Invoke sends an encoded
// request to a full gRPC method name and returns the encoded response.
type Channel interface {
	Invoke(ctx context.Context, method string, request []byte) ([]byte, error)
	Close() error
}

// Dialer opens a channel to a node. Dialing must not block on connection establishment.
type Dialer func(node Node) (Channel, error)

type nodeState struct {
	node         Node
	channel      Channel
	suspectUntil time.Time
}

// Registry tracks the known nodes, their lazily opened channels and their
// health. It is safe for concurrent use and never holds its lock while dialing
// or sending.
type Registry struct {
	lggr logger.Logger
	dial Dialer
	now  func() time.Time

	lock  sync.RWMutex
	order []string
	nodes map[string]*nodeState
}

type RegistryOption func(*Registry)

// WithClock overrides the clock used for suspect windows.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(lggr logger.Logger, nodes []Node, dial Dialer, opts ...RegistryOption) (*Registry, error) {
	if len(nodes) == 0 {
		return nil, errors.New("at least one node is required")
	}
	if dial == nil {
		return nil, errors.New("dialer is required")
	}

	r := &Registry{
		lggr:  logger.Named(lggr, "NodeRegistry"),
		dial:  dial,
		now:   time.Now,
		nodes: make(map[string]*nodeState, len(nodes)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, n := range nodes {
		key := n.AccountID.String()
		if _, ok := r.nodes[key]; ok {
			return nil, fmt.Errorf("duplicate node account %s", key)
		}
		n.AccountID = n.AccountID.WithoutChecksum()
		r.nodes[key] = &nodeState{node: n}
		r.order = append(r.order, key)
		promNodeSuspect.WithLabelValues(key).Set(0)
	}
	return r, nil
}

// Nodes returns every known node in registration order.
func (r *Registry) Nodes() []Node {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]Node, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.nodes[key].node)
	}
	return out
}

// NodeAccountIDs returns the account ids of every known node in registration order.
func (r *Registry) NodeAccountIDs() []entity.AccountID {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]entity.AccountID, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.nodes[key].node.AccountID)
	}
	return out
}

// Node returns the node with the given account id.
func (r *Registry) Node(id entity.AccountID) (Node, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s, ok := r.nodes[id.String()]
	if !ok {
		return Node{}, false
	}
	return s.node, true
}

// HealthyNodes returns the account ids of nodes that are not suspect, in
// registration order. Elapsed suspect windows are cleared.
func (r *Registry) HealthyNodes() []entity.AccountID {
	now := r.now()

	r.lock.Lock()
	defer r.lock.Unlock()

	out := make([]entity.AccountID, 0, len(r.order))
	for _, key := range r.order {
		s := r.nodes[key]
		if !s.healthyAt(now) {
			continue
		}
		if !s.suspectUntil.IsZero() {
			// window elapsed since the last mark
			s.suspectUntil = time.Time{}
			promNodeSuspect.WithLabelValues(key).Set(0)
		}
		out = append(out, s.node.AccountID)
	}
	return out
}

// IsHealthy reports whether id is known and not suspect.
func (r *Registry) IsHealthy(id entity.AccountID) bool {
	now := r.now()

	r.lock.RLock()
	defer r.lock.RUnlock()

	s, ok := r.nodes[id.String()]
	return ok && s.healthyAt(now)
}

// MarkSuspect excludes id from HealthyNodes for d. Marking an already suspect
// node extends the window if the new one ends later.
func (r *Registry) MarkSuspect(id entity.AccountID, d time.Duration) {
	until := r.now().Add(d)
	key := id.String()

	r.lock.Lock()
	s, ok := r.nodes[key]
	if ok {
		if until.After(s.suspectUntil) {
			s.suspectUntil = until
		}
		promNodeSuspect.WithLabelValues(key).Set(1)
	}
	r.lock.Unlock()

	if !ok {
		return
	}
	r.lggr.Debugw("node marked suspect", "node", key, "until", until)
}

// MarkHealthy clears the suspect window of id.
func (r *Registry) MarkHealthy(id entity.AccountID) {
	key := id.String()

	r.lock.Lock()
	s, ok := r.nodes[key]
	wasSuspect := ok && !s.suspectUntil.IsZero()
	if ok {
		s.suspectUntil = time.Time{}
	}
	if wasSuspect {
		promNodeSuspect.WithLabelValues(key).Set(0)
	}
	r.lock.Unlock()

	if wasSuspect {
		r.lggr.Debugw("node healthy again", "node", key)
	}
}

// Resolve returns the shared channel to id, dialing it on first use.
func (r *Registry) Resolve(id entity.AccountID) (Channel, error) {
	key := id.String()

	r.lock.RLock()
	s, ok := r.nodes[key]
	var ch Channel
	var node Node
	if ok {
		ch, node = s.channel, s.node
	}
	r.lock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, key)
	}
	if ch != nil {
		return ch, nil
	}

	dialed, err := r.dial(node)
	if err != nil {
		return nil, fmt.Errorf("failed to dial node %s: %w", node, err)
	}

	r.lock.Lock()
	if s.channel == nil {
		s.channel = dialed
		dialed = nil
	}
	ch = s.channel
	r.lock.Unlock()

	// lost the race against a concurrent dial
	if dialed != nil {
		if err := dialed.Close(); err != nil {
			r.lggr.Warnw("failed to close redundant channel", "node", key, "err", err)
		}
	}
	return ch, nil
}

// Send invokes method on the node id.
func (r *Registry) Send(ctx context.Context, id entity.AccountID, method string, request []byte) ([]byte, error) {
	ch, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	return ch.Invoke(ctx, method, request)
}

// Close closes every open channel.
func (r *Registry) Close() error {
	r.lock.Lock()
	var channels []Channel
	for _, key := range r.order {
		s := r.nodes[key]
		if s.channel != nil {
			channels = append(channels, s.channel)
			s.channel = nil
		}
	}
	r.lock.Unlock()

	var errs []error
	for _, ch := range channels {
		errs = append(errs, ch.Close())
	}
	return errors.Join(errs...)
}

// Contains reports whether every id is a known node.
func (r *Registry) Contains(ids ...entity.AccountID) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return !slices.ContainsFunc(ids, func(id entity.AccountID) bool {
		_, ok := r.nodes[id.String()]
		return !ok
	})
}

func (s *nodeState) healthyAt(now time.Time) bool {
	return !now.Before(s.suspectUntil)
}
