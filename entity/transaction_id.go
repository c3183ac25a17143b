package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

var ErrInvalidTransactionID = errors.New("invalid transaction id")

// TransactionID is the idempotency key of a transaction: the payer account and
// the start of its validity window. It never changes across retries.
type TransactionID struct {
	AccountID  AccountID
	ValidStart time.Time
	Scheduled  bool
	Nonce      int32
}

// IsZero reports whether the id has not been assigned.
func (id TransactionID) IsZero() bool {
	return id.AccountID.IsZero() && id.ValidStart.IsZero()
}

// String formats the id as payer@seconds.nanos with optional ?scheduled and /nonce suffixes.
func (id TransactionID) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%d.%09d", id.AccountID, id.ValidStart.Unix(), id.ValidStart.Nanosecond())
	if id.Scheduled {
		b.WriteString("?scheduled")
	}
	if id.Nonce != 0 {
		fmt.Fprintf(&b, "/%d", id.Nonce)
	}
	return b.String()
}

// ParseTransactionID is the inverse of TransactionID.String.
func ParseTransactionID(s string) (TransactionID, error) {
	var id TransactionID

	if i := strings.LastIndexByte(s, '/'); i != -1 {
		nonce, err := strconv.ParseInt(s[i+1:], 10, 32)
		if err != nil {
			return TransactionID{}, fmt.Errorf("%w: bad nonce in %q", ErrInvalidTransactionID, s)
		}
		id.Nonce = int32(nonce)
		s = s[:i]
	}
	if rest, ok := strings.CutSuffix(s, "?scheduled"); ok {
		id.Scheduled = true
		s = rest
	}

	account, start, ok := strings.Cut(s, "@")
	if !ok {
		return TransactionID{}, fmt.Errorf("%w: missing '@' in %q", ErrInvalidTransactionID, s)
	}
	acc, err := Parse(account)
	if err != nil {
		return TransactionID{}, fmt.Errorf("%w: %w", ErrInvalidTransactionID, err)
	}
	id.AccountID = acc

	secStr, nanoStr, ok := strings.Cut(start, ".")
	if !ok {
		return TransactionID{}, fmt.Errorf("%w: missing nanos in %q", ErrInvalidTransactionID, start)
	}
	secs, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return TransactionID{}, fmt.Errorf("%w: bad seconds in %q", ErrInvalidTransactionID, start)
	}
	nanos, err := strconv.ParseInt(nanoStr, 10, 64)
	if err != nil || nanos < 0 || nanos >= int64(time.Second) {
		return TransactionID{}, fmt.Errorf("%w: bad nanos in %q", ErrInvalidTransactionID, start)
	}
	id.ValidStart = time.Unix(secs, nanos).UTC()
	return id, nil
}

// TransactionIDGenerator hands out valid-start timestamps that strictly
// increase within the process, so two transactions from the same payer never
// collide even when the clock does not move.
type TransactionIDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewTransactionIDGenerator returns a generator reading the given clock. A nil
// clock uses time.Now.
func NewTransactionIDGenerator(now func() time.Time) *TransactionIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &TransactionIDGenerator{now: now}
}

// Generate returns a new transaction id for payer.
func (g *TransactionIDGenerator) Generate(payer AccountID) TransactionID {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := g.now().UTC()
	if !start.After(g.last) {
		start = g.last.Add(time.Nanosecond)
	}
	g.last = start

	return TransactionID{AccountID: payer.WithoutChecksum(), ValidStart: start}
}
