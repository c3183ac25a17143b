package hedera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/loop"
	"github.com/smartcontractkit/chainlink-common/pkg/services"

	"github.com/smartcontractkit/chainlink-hedera/config"
	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/hapi"
	"github.com/smartcontractkit/chainlink-hedera/keystore"
	"github.com/smartcontractkit/chainlink-hedera/monitor"
	"github.com/smartcontractkit/chainlink-hedera/network"
	"github.com/smartcontractkit/chainlink-hedera/operations"
	"github.com/smartcontractkit/chainlink-hedera/sdk"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

var ErrNoOperator = errors.New("no operator set")

var _ services.Service = &Client{}

// Client submits transactions and queries to one network on behalf of an
// optional operator, which pays for and signs everything it executes.
type Client struct {
	services.StateMachine

	cfg    *config.TOMLConfig
	lggr   logger.Logger
	ledger entity.LedgerID

	registry *network.Registry
	executor *txm.Executor
	monitor  services.Service

	lock     sync.RWMutex
	operator *Operator
}

type Option func(*options)

type options struct {
	dialer       network.Dialer
	dialOpts     []sdk.DialOption
	registryOpts []network.RegistryOption
	executorOpts []txm.ExecutorOption
}

// WithDialer replaces the gRPC dialer, typically with a fake network.
func WithDialer(dialer network.Dialer) Option {
	return func(o *options) { o.dialer = dialer }
}

// WithDialOptions adds options to the default gRPC dialer.
func WithDialOptions(opts ...sdk.DialOption) Option {
	return func(o *options) { o.dialOpts = append(o.dialOpts, opts...) }
}

func WithRegistryOptions(opts ...network.RegistryOption) Option {
	return func(o *options) { o.registryOpts = append(o.registryOpts, opts...) }
}

func WithExecutorOptions(opts ...txm.ExecutorOption) Option {
	return func(o *options) { o.executorOpts = append(o.executorOpts, opts...) }
}

// NewClient builds a client from cfg. Defaults are applied to cfg before it
// is validated.
func NewClient(cfg *config.TOMLConfig, lggr logger.Logger, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.SetDefaults()
	if err := cfg.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid hedera config: %w", err)
	}
	execCfg, err := cfg.ExecutorConfig()
	if err != nil {
		return nil, err
	}
	nodes, err := cfg.NetworkNodes()
	if err != nil {
		return nil, err
	}

	networkName := "custom"
	if cfg.Network != nil && *cfg.Network != "" {
		networkName = *cfg.Network
	}
	lggr = logger.Named(logger.With(lggr, "network", networkName), "HederaClient")

	dialer := o.dialer
	if dialer == nil {
		perSecond, burst := cfg.RateLimit()
		dialer = sdk.NewDialer(append([]sdk.DialOption{sdk.WithRateLimit(perSecond, burst)}, o.dialOpts...)...)
	}
	registry, err := network.NewRegistry(lggr, nodes, dialer, o.registryOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create node registry: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		lggr:     lggr,
		ledger:   execCfg.LedgerID,
		registry: registry,
		executor: txm.NewExecutor(lggr, execCfg, registry, registry, o.executorOpts...),
	}
	return c, nil
}

// ForTestnet returns a client for the public testnet nodes.
func ForTestnet(lggr logger.Logger, opts ...Option) (*Client, error) {
	return NewClient(config.NewDefault("testnet"), lggr, opts...)
}

// ForMainnet returns a client for the public mainnet nodes.
func ForMainnet(lggr logger.Logger, opts ...Option) (*Client, error) {
	return NewClient(config.NewDefault("mainnet"), lggr, opts...)
}

// ForPreviewnet returns a client for the public previewnet nodes.
func ForPreviewnet(lggr logger.Logger, opts ...Option) (*Client, error) {
	return NewClient(config.NewDefault("previewnet"), lggr, opts...)
}

func (c *Client) Ledger() entity.LedgerID { return c.ledger }

func (c *Client) Executor() *txm.Executor { return c.executor }

func (c *Client) Registry() *network.Registry { return c.registry }

// SetOperator sets the account paying for transactions and queries, signing with key.
func (c *Client) SetOperator(account entity.AccountID, key keystore.PrivateKey) error {
	ks := keystore.New(key)
	return c.SetOperatorWithKeystore(account, ks, key.PublicKey().String())
}

// SetOperatorWithKeystore sets the operator to sign through ks with the
// key whose hex public key is publicKey.
func (c *Client) SetOperatorWithKeystore(account entity.AccountID, ks loop.Keystore, publicKey string) error {
	if account.IsZero() {
		return fmt.Errorf("operator account is required")
	}
	if !c.ledger.IsEmpty() {
		if err := account.ValidateChecksum(c.ledger); err != nil {
			return err
		}
	}
	if _, err := keystore.ParsePublicKey(publicKey); err != nil {
		return fmt.Errorf("invalid operator public key: %w", err)
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.operator = &Operator{account: account.WithoutChecksum(), ks: ks, publicKey: publicKey}
	c.lggr.Infow("operator set", "account", account.String(), "publicKey", publicKey)
	return nil
}

// Operator returns the current operator.
func (c *Client) Operator() (*Operator, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.operator == nil {
		return nil, ErrNoOperator
	}
	return c.operator, nil
}

// Freeze freezes tx with the client defaults, the operator paying.
func (c *Client) Freeze(tx *txm.Transaction) (*txm.FrozenTransaction, error) {
	var payer entity.AccountID
	if op, err := c.Operator(); err == nil {
		payer = op.AccountID()
	}
	return tx.Freeze(c.executor.FreezeDefaults(payer))
}

// Execute freezes tx if needed, signs it with the operator and submits it.
// Other signatures must have been added to a transaction frozen with Freeze.
func (c *Client) Execute(ctx context.Context, tx *txm.Transaction) (*txm.TransactionResponse, error) {
	op, err := c.Operator()
	if err != nil {
		return nil, err
	}
	frozen, err := tx.Freeze(c.executor.FreezeDefaults(op.AccountID()))
	if errors.Is(err, txm.ErrAlreadyFrozen) {
		return nil, fmt.Errorf("transaction already signed, submit the frozen transaction: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, frozen)
}

// Submit adds the operator signature, when an operator is set, and sends frozen.
func (c *Client) Submit(ctx context.Context, frozen *txm.FrozenTransaction) (*txm.TransactionResponse, error) {
	if op, err := c.Operator(); err == nil {
		if err := op.SignTransaction(ctx, frozen); err != nil {
			return nil, err
		}
	}
	return c.executor.ExecuteTransaction(ctx, frozen)
}

// Query runs q. Paid queries are funded by the operator.
func (c *Client) Query(ctx context.Context, q *txm.Query) (*hapi.Response, error) {
	var payer txm.QueryPayer
	if op, err := c.Operator(); err == nil {
		payer = op
	}
	return c.executor.ExecuteQuery(ctx, q, payer)
}

// GetReceipt polls the receipt of id from the healthy nodes, or from every
// node when none is healthy, and fails on a non SUCCESS status.
func (c *Client) GetReceipt(ctx context.Context, id entity.TransactionID) (*txm.Receipt, error) {
	return c.executor.PollReceipt(ctx, id, c.executor.CandidateNodes(), true)
}

// GetAccountBalance returns the hbar balance of account in tinybars.
func (c *Client) GetAccountBalance(ctx context.Context, account entity.AccountID) (uint64, error) {
	resp, err := c.Query(ctx, txm.NewQuery(operations.AccountBalanceQuery{AccountID: account}))
	if err != nil {
		return 0, err
	}
	balance, err := operations.ParseAccountBalance(resp)
	if err != nil {
		return 0, err
	}
	return balance.Tinybars, nil
}

// GetFileContents reads a file, paying at most maxPayment tinybars. Zero
// uses the default max query payment.
func (c *Client) GetFileContents(ctx context.Context, file entity.FileID, maxPayment uint64) ([]byte, error) {
	q := txm.NewQuery(operations.FileContentsQuery{FileID: file})
	if maxPayment > 0 {
		q.SetMaxQueryPayment(maxPayment)
	}
	resp, err := c.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return operations.ParseFileContents(resp)
}

// Service interface
func (c *Client) Name() string {
	return c.lggr.Name()
}

// Start begins reporting the operator balance. Without an operator there is
// nothing to monitor.
func (c *Client) Start(ctx context.Context) error {
	return c.StartOnce("HederaClient", func() error {
		c.lggr.Debug("Starting")
		op, err := c.Operator()
		if err != nil {
			c.lggr.Infow("no operator, balance monitor disabled")
			return nil
		}
		c.monitor = monitor.NewBalanceMonitor(c.ledger, c.cfg, c.lggr, op, func() (monitor.BalanceClient, error) {
			return c, nil
		})
		var ms services.MultiStart
		return ms.Start(ctx, c.monitor)
	})
}

func (c *Client) Close() error {
	return c.StopOnce("HederaClient", func() error {
		c.lggr.Debug("Stopping")
		var err error
		if c.monitor != nil {
			err = services.CloseAll(c.monitor)
		}
		return errors.Join(err, c.registry.Close())
	})
}

func (c *Client) Ready() error {
	err := c.StateMachine.Ready()
	if c.monitor != nil {
		err = errors.Join(err, c.monitor.Ready())
	}
	return err
}

func (c *Client) HealthReport() map[string]error {
	report := map[string]error{c.Name(): c.Healthy()}
	if c.monitor != nil {
		services.CopyHealth(report, c.monitor.HealthReport())
	}
	return report
}
