package txm

import (
	"context"
	"crypto/sha512"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartcontractkit/chainlink-common/pkg/loop"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/keystore"
)

// TransactionData is the operation specific part of a transaction.
type TransactionData interface {
	// WireBody maps the operation onto its TransactionBody oneof for one node.
	WireBody(node entity.AccountID, transactionID entity.TransactionID) hapi.TransactionData
	// Method is the full gRPC method accepting the transaction.
	Method() string
}

// ChecksumValidator is implemented by operations carrying entity ids whose
// checksums should be checked at freeze time.
type ChecksumValidator interface {
	ValidateChecksums(ledger entity.LedgerID) error
}

// FreezeDefaults fill in whatever the builder did not set.
type FreezeDefaults struct {
	Payer entity.AccountID
	// Nodes are the candidate nodes, normally the healthy ones.
	Nodes             []entity.AccountID
	MaxNodes          int
	ValidDuration     time.Duration
	MaxTransactionFee uint64
	Ledger            entity.LedgerID
	IDs               *entity.TransactionIDGenerator
}

// Transaction is a mutable transaction builder.
type Transaction struct {
	data TransactionData

	transactionID  entity.TransactionID
	nodeAccountIDs []entity.AccountID
	validDuration  time.Duration
	maxFee         uint64
	memo           string

	// assigned at the first freeze and reused by later ones
	assignedID    entity.TransactionID
	assignedNodes []entity.AccountID
	// set once any request frozen from this builder is signed
	signed atomic.Bool
}

func NewTransaction(data TransactionData) *Transaction {
	return &Transaction{data: data}
}

func (t *Transaction) Data() TransactionData { return t.data }

// SetTransactionID pins the transaction id, which also sets the payer.
func (t *Transaction) SetTransactionID(id entity.TransactionID) *Transaction {
	t.transactionID = id
	return t
}

// SetNodeAccountIDs restricts submission to the given nodes, in order.
func (t *Transaction) SetNodeAccountIDs(nodes ...entity.AccountID) *Transaction {
	t.nodeAccountIDs = nodes
	return t
}

func (t *Transaction) SetValidDuration(d time.Duration) *Transaction {
	t.validDuration = d
	return t
}

// SetMaxTransactionFee sets the fee ceiling in tinybars.
func (t *Transaction) SetMaxTransactionFee(tinybars uint64) *Transaction {
	t.maxFee = tinybars
	return t
}

func (t *Transaction) SetTransactionMemo(memo string) *Transaction {
	t.memo = memo
	return t
}

// Freeze produces the immutable, signable request. Freezing again returns a
// request with the same transaction id and nodes until any of the frozen
// requests has been signed, after which ErrAlreadyFrozen is returned.
func (t *Transaction) Freeze(d FreezeDefaults) (*FrozenTransaction, error) {
	if t.signed.Load() {
		return nil, ErrAlreadyFrozen
	}

	if err := t.validate(d.Ledger); err != nil {
		return nil, err
	}

	txID, err := t.resolveTransactionID(d)
	if err != nil {
		return nil, err
	}
	nodes, err := t.resolveNodes(d)
	if err != nil {
		return nil, err
	}

	validDuration := firstNonZero(t.validDuration, d.ValidDuration)
	if validDuration <= 0 || validDuration > MaxValidDuration {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValidDuration, validDuration)
	}
	maxFee := t.maxFee
	if maxFee == 0 {
		maxFee = d.MaxTransactionFee
	}

	f := &FrozenTransaction{
		method:        t.data.Method(),
		transactionID: txID,
		validDuration: validDuration,
		maxFee:        maxFee,
		memo:          t.memo,
		nodes:         nodes,
		entries:       make(map[string]*nodeEntry, len(nodes)),
		builderSigned: &t.signed,
	}
	for _, node := range nodes {
		body := hapi.TransactionBody{
			TransactionID:  txID,
			NodeAccountID:  node,
			TransactionFee: maxFee,
			ValidDuration:  validDuration,
			Memo:           t.memo,
			Data:           t.data.WireBody(node, txID),
		}
		f.entries[node.String()] = &nodeEntry{bodyBytes: body.Marshal()}
	}

	t.assignedID = txID
	t.assignedNodes = nodes
	return f, nil
}

func (t *Transaction) validate(ledger entity.LedgerID) error {
	if len(t.memo) > maxMemoBytes {
		return ErrMemoTooLong
	}
	if ledger.IsEmpty() {
		return nil
	}

	ids := []*entity.EntityID{&t.transactionID.AccountID}
	for i := range t.nodeAccountIDs {
		ids = append(ids, &t.nodeAccountIDs[i])
	}
	if err := entity.ValidateChecksums(ledger, ids...); err != nil {
		return err
	}
	if v, ok := t.data.(ChecksumValidator); ok {
		return v.ValidateChecksums(ledger)
	}
	return nil
}

func (t *Transaction) resolveTransactionID(d FreezeDefaults) (entity.TransactionID, error) {
	switch {
	case !t.transactionID.IsZero():
		id := t.transactionID
		id.AccountID = id.AccountID.WithoutChecksum()
		return id, nil
	case !t.assignedID.IsZero():
		return t.assignedID, nil
	case d.Payer.IsZero():
		return entity.TransactionID{}, ErrNoPayerSet
	}

	ids := d.IDs
	if ids == nil {
		ids = entity.NewTransactionIDGenerator(nil)
	}
	return ids.Generate(d.Payer), nil
}

func (t *Transaction) resolveNodes(d FreezeDefaults) ([]entity.AccountID, error) {
	if len(t.nodeAccountIDs) > 0 {
		nodes := make([]entity.AccountID, len(t.nodeAccountIDs))
		for i, n := range t.nodeAccountIDs {
			nodes[i] = n.WithoutChecksum()
		}
		return nodes, nil
	}
	if len(t.assignedNodes) > 0 {
		return t.assignedNodes, nil
	}
	return SelectNodes(d.Nodes, d.MaxNodes)
}

// SelectNodes picks a random subset of about a third of candidates, at least
// one and at most maxNodes when maxNodes is positive.
func SelectNodes(candidates []entity.AccountID, maxNodes int) ([]entity.AccountID, error) {
	if len(candidates) == 0 {
		return nil, ErrNoNodes
	}
	n := max(1, (len(candidates)+2)/3)
	if maxNodes > 0 {
		n = min(n, maxNodes)
	}

	nodes := make([]entity.AccountID, 0, n)
	for _, i := range rand.Perm(len(candidates))[:n] {
		nodes = append(nodes, candidates[i])
	}
	return nodes, nil
}

type nodeEntry struct {
	bodyBytes []byte
	sigPairs  []hapi.SignaturePair
}

// FrozenTransaction is an immutable request with one body per target node.
// Signatures may be appended concurrently.
type FrozenTransaction struct {
	method        string
	transactionID entity.TransactionID
	validDuration time.Duration
	maxFee        uint64
	memo          string
	nodes         []entity.AccountID

	lock    sync.RWMutex
	entries map[string]*nodeEntry
	signers []keystore.PublicKey

	builderSigned *atomic.Bool
}

func (f *FrozenTransaction) Method() string                      { return f.method }
func (f *FrozenTransaction) TransactionID() entity.TransactionID { return f.transactionID }
func (f *FrozenTransaction) ValidDuration() time.Duration        { return f.validDuration }
func (f *FrozenTransaction) MaxTransactionFee() uint64           { return f.maxFee }
func (f *FrozenTransaction) Memo() string                        { return f.memo }

// NodeAccountIDs returns the target nodes in submission order.
func (f *FrozenTransaction) NodeAccountIDs() []entity.AccountID {
	return append([]entity.AccountID(nil), f.nodes...)
}

// BodyBytes returns the signed body for node.
func (f *FrozenTransaction) BodyBytes(node entity.AccountID) ([]byte, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	e, ok := f.entries[node.String()]
	if !ok {
		return nil, fmt.Errorf("node %s is not a target of transaction %s", node, f.transactionID)
	}
	return e.bodyBytes, nil
}

func (f *FrozenTransaction) SignatureCount() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return len(f.signers)
}

// Sign appends a signature by key to every per node body. Signing twice with
// the same key is a no-op.
func (f *FrozenTransaction) Sign(key keystore.PrivateKey) error {
	return f.SignWith(key.PublicKey(), func(message []byte) ([]byte, error) {
		return key.Sign(message)
	})
}

// SignWithKeystore signs with the keystore account holding the hex encoded
// public key account.
func (f *FrozenTransaction) SignWithKeystore(ctx context.Context, ks loop.Keystore, account string) error {
	pub, err := keystore.ParsePublicKey(account)
	if err != nil {
		return err
	}
	return f.SignWith(pub, func(message []byte) ([]byte, error) {
		return ks.Sign(ctx, account, message)
	})
}

// SignWith appends signatures produced by sign for public key pub.
func (f *FrozenTransaction) SignWith(pub keystore.PublicKey, sign func(message []byte) ([]byte, error)) error {
	if f == nil {
		return ErrNotFrozen
	}

	f.lock.RLock()
	for _, s := range f.signers {
		if s.Equal(pub) {
			f.lock.RUnlock()
			return nil
		}
	}
	bodies := make(map[string][]byte, len(f.entries))
	for k, e := range f.entries {
		bodies[k] = e.bodyBytes
	}
	f.lock.RUnlock()

	// sign outside the lock, a keystore may be remote
	sigs := make(map[string]hapi.SignaturePair, len(bodies))
	for k, body := range bodies {
		sig, err := sign(body)
		if err != nil {
			return fmt.Errorf("failed to sign transaction %s: %w", f.transactionID, err)
		}
		sigs[k] = pub.SignaturePair(sig)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	for _, s := range f.signers {
		if s.Equal(pub) {
			return nil
		}
	}
	for k, pair := range sigs {
		f.entries[k].sigPairs = append(f.entries[k].sigPairs, pair)
	}
	f.signers = append(f.signers, pub)
	if f.builderSigned != nil {
		f.builderSigned.Store(true)
	}
	return nil
}

// SignedTransactionBytes returns the encoded SignedTransaction for node.
func (f *FrozenTransaction) SignedTransactionBytes(node entity.AccountID) ([]byte, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	e, ok := f.entries[node.String()]
	if !ok {
		return nil, fmt.Errorf("node %s is not a target of transaction %s", node, f.transactionID)
	}
	signed := hapi.SignedTransaction{BodyBytes: e.bodyBytes, SigPairs: e.sigPairs}
	return signed.Marshal(), nil
}

// Payload returns the encoded Transaction message sent to node.
func (f *FrozenTransaction) Payload(node entity.AccountID) ([]byte, error) {
	signed, err := f.SignedTransactionBytes(node)
	if err != nil {
		return nil, err
	}
	return hapi.MarshalTransaction(signed), nil
}

// Hash is the SHA-384 digest of the signed transaction sent to node.
func (f *FrozenTransaction) Hash(node entity.AccountID) ([]byte, error) {
	signed, err := f.SignedTransactionBytes(node)
	if err != nil {
		return nil, err
	}
	sum := sha512.Sum384(signed)
	return sum[:], nil
}

func firstNonZero(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d != 0 {
			return d
		}
	}
	return 0
}
