package txm

import (
	"errors"
	"time"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

const (
	// MaxValidDuration is the longest validity window a node accepts.
	MaxValidDuration = 180 * time.Second
	maxMemoBytes     = 100
)

type Config struct {
	// LedgerID is used to validate entity checksums. Empty skips validation.
	LedgerID entity.LedgerID

	MaxAttempts       int
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	GrpcDeadline      time.Duration
	RequestTimeout    time.Duration
	NodeSuspectWindow time.Duration

	MaxNodesPerTransaction   int
	TransactionValidDuration time.Duration
	DefaultMaxTransactionFee uint64 // tinybars
	DefaultMaxQueryPayment   uint64 // tinybars

	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:              10,
		MinBackoff:               250 * time.Millisecond,
		MaxBackoff:               8 * time.Second,
		GrpcDeadline:             10 * time.Second,
		RequestTimeout:           2 * time.Minute,
		NodeSuspectWindow:        30 * time.Second,
		MaxNodesPerTransaction:   5,
		TransactionValidDuration: 120 * time.Second,
		DefaultMaxTransactionFee: 200_000_000,
		DefaultMaxQueryPayment:   100_000_000,
		ReceiptPollInterval:      500 * time.Millisecond,
		ReceiptTimeout:           2 * time.Minute,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxAttempts < 1 {
		errs = append(errs, errors.New("MaxAttempts must be at least 1"))
	}
	if c.MinBackoff <= 0 || c.MaxBackoff < c.MinBackoff {
		errs = append(errs, errors.New("backoff must satisfy 0 < MinBackoff <= MaxBackoff"))
	}
	if c.GrpcDeadline <= 0 {
		errs = append(errs, errors.New("GrpcDeadline must be positive"))
	}
	if c.RequestTimeout < c.GrpcDeadline {
		errs = append(errs, errors.New("RequestTimeout must not be shorter than GrpcDeadline"))
	}
	if c.TransactionValidDuration <= 0 || c.TransactionValidDuration > MaxValidDuration {
		errs = append(errs, ErrInvalidValidDuration)
	}
	if c.ReceiptPollInterval <= 0 {
		errs = append(errs, errors.New("ReceiptPollInterval must be positive"))
	}
	return errors.Join(errs...)
}
