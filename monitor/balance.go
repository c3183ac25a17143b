package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
	"github.com/smartcontractkit/chainlink-common/pkg/utils"

	"github.com/smartcontractkit/chainlink-hedera/entity"
)

// Config defines the monitor configuration.
type Config interface {
	BalancePollPeriod() time.Duration
}

// Accounts provides the account ids to be monitored, in shard.realm.num form.
type Accounts interface {
	Accounts(ctx context.Context) ([]string, error)
}

type BalanceClient interface {
	GetAccountBalance(ctx context.Context, account entity.AccountID) (uint64, error)
}

// NewBalanceMonitor returns a services.Service reporting the hbar balance of
// every account to prometheus. The health report carries the error of the
// last poll, if every balance of that poll failed.
func NewBalanceMonitor(ledger entity.LedgerID, cfg Config, lggr logger.Logger, accounts Accounts, dial func() (BalanceClient, error)) services.Service {
	return newBalanceMonitor(ledger, cfg, lggr, accounts, dial)
}

func newBalanceMonitor(ledger entity.LedgerID, cfg Config, lggr logger.Logger, accounts Accounts, dial func() (BalanceClient, error)) *balanceMonitor {
	b := &balanceMonitor{
		network:  ledger.String(),
		cfg:      cfg,
		lggr:     logger.Named(lggr, "BalanceMonitor"),
		accounts: accounts,
		dial:     dial,
		stop:     make(services.StopChan),
	}
	b.report = b.updateProm
	return b
}

type balanceMonitor struct {
	services.StateMachine
	network  string
	cfg      Config
	lggr     logger.Logger
	accounts Accounts
	dial     func() (BalanceClient, error)
	report   func(acc entity.AccountID, tinybars uint64) // overridable for testing

	// owned by the poll loop
	client BalanceClient

	errLock sync.RWMutex
	lastErr error

	stop services.StopChan
	wg   sync.WaitGroup
}

func (b *balanceMonitor) Name() string {
	return b.lggr.Name()
}

func (b *balanceMonitor) Start(context.Context) error {
	return b.StartOnce("HederaBalanceMonitor", func() error {
		b.wg.Add(1)
		go b.run()
		return nil
	})
}

func (b *balanceMonitor) Close() error {
	return b.StopOnce("HederaBalanceMonitor", func() error {
		close(b.stop)
		b.wg.Wait()
		return nil
	})
}

func (b *balanceMonitor) HealthReport() map[string]error {
	return map[string]error{b.Name(): errors.Join(b.Healthy(), b.pollErr())}
}

func (b *balanceMonitor) run() {
	defer b.wg.Done()
	ctx, cancel := b.stop.NewCtx()
	defer cancel()

	timer := time.NewTimer(utils.WithJitter(b.cfg.BalancePollPeriod()))
	defer timer.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-timer.C:
			err := b.poll(ctx)
			b.setPollErr(err)
			if err != nil {
				b.countPollFailure()
			}
			timer.Reset(utils.WithJitter(b.cfg.BalancePollPeriod()))
		}
	}
}

func (b *balanceMonitor) getClient() (BalanceClient, error) {
	if b.client != nil {
		return b.client, nil
	}
	client, err := b.dial()
	if err != nil {
		return nil, err
	}
	b.client = client
	return client, nil
}

// poll reports one balance per account. It fails only when there were
// accounts and none of their balances could be read, in which case the
// client is dropped and dialed again next time.
func (b *balanceMonitor) poll(ctx context.Context) error {
	accounts, err := b.accounts.Accounts(ctx)
	if err != nil {
		b.lggr.Errorw("Failed to get accounts", "err", err)
		return fmt.Errorf("failed to get accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil
	}
	client, err := b.getClient()
	if err != nil {
		b.lggr.Errorw("Failed to get client", "err", err)
		return fmt.Errorf("failed to get client: %w", err)
	}

	var failures []error
	reported := 0
	for _, a := range accounts {
		if ctx.Err() != nil {
			return nil
		}
		id, err := entity.Parse(a)
		if err != nil {
			b.lggr.Errorw("Failed to parse account", "account", a, "err", err)
			failures = append(failures, err)
			continue
		}
		tinybars, err := client.GetAccountBalance(ctx, id)
		if err != nil {
			b.lggr.Warnw("Failed to get balance", "account", id.String(), "err", err)
			failures = append(failures, fmt.Errorf("account %s: %w", id, err))
			continue
		}
		reported++
		b.report(id, tinybars)
	}
	if reported == 0 {
		b.client = nil
		return fmt.Errorf("no balance could be read: %w", errors.Join(failures...))
	}
	return nil
}

func (b *balanceMonitor) setPollErr(err error) {
	b.errLock.Lock()
	defer b.errLock.Unlock()
	b.lastErr = err
}

func (b *balanceMonitor) pollErr() error {
	b.errLock.RLock()
	defer b.errLock.RUnlock()
	return b.lastErr
}
