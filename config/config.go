package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slices"

	"github.com/smartcontractkit/chainlink-common/pkg/config"

	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/network"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

//go:embed defaults.toml
var defaultsTOML string

var defaults TOMLConfig

func init() {
	if err := decode(strings.NewReader(defaultsTOML), &defaults); err != nil {
		log.Fatalf("Failed to initialize defaults: %v", err)
	}
}

// Defaults returns a copy of the embedded defaults.
func Defaults() (c TOMLConfig) {
	c.SetFrom(&defaults)
	return
}

type TOMLConfig struct {
	Network *string
	// LedgerID overrides the ledger of the preset, used for entity checksums.
	LedgerID  *string
	Operator  OperatorConfig
	Execution ExecutionConfig
	Monitor   MonitorConfig
	Nodes     NodeConfigs
}

type OperatorConfig struct {
	AccountID *string
}

type ExecutionConfig struct {
	MaxAttempts              *uint32
	MinBackoff               *config.Duration
	MaxBackoff               *config.Duration
	GrpcDeadline             *config.Duration
	RequestTimeout           *config.Duration
	NodeSuspectWindow        *config.Duration
	MaxNodesPerTransaction   *uint32
	TransactionValidDuration *config.Duration
	DefaultMaxTransactionFee *uint64
	DefaultMaxQueryPayment   *uint64
	ReceiptPollInterval      *config.Duration
	ReceiptTimeout           *config.Duration
	MaxRequestsPerSecond     *float64
	RequestBurst             *uint32
}

type MonitorConfig struct {
	BalancePollPeriod *config.Duration
}

type NodeConfig struct {
	Name      *string
	AccountID *string
	URL       *config.URL
}

type NodeConfigs []*NodeConfig

// Decode reads a TOML config, rejecting unknown fields.
func Decode(r io.Reader) (*TOMLConfig, error) {
	var c TOMLConfig
	if err := decode(r, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load decodes the file at path, applies the defaults and validates the result.
func Load(path string) (*TOMLConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	c.SetDefaults()
	if err := c.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func decode(r io.Reader, c *TOMLConfig) error {
	d := toml.NewDecoder(r)
	d.DisallowUnknownFields()
	return d.Decode(c)
}

// NewDefault returns the defaults for a preset network.
func NewDefault(network string) *TOMLConfig {
	c := Defaults()
	c.Network = &network
	c.SetDefaults()
	return &c
}

func (c *TOMLConfig) SetFrom(f *TOMLConfig) {
	if f.Network != nil {
		c.Network = f.Network
	}
	if f.LedgerID != nil {
		c.LedgerID = f.LedgerID
	}
	if f.Operator.AccountID != nil {
		c.Operator.AccountID = f.Operator.AccountID
	}
	c.Execution.setFrom(&f.Execution)
	if f.Monitor.BalancePollPeriod != nil {
		c.Monitor.BalancePollPeriod = f.Monitor.BalancePollPeriod
	}
	c.Nodes.SetFrom(&f.Nodes)
}

func (c *ExecutionConfig) setFrom(f *ExecutionConfig) {
	if f.MaxAttempts != nil {
		c.MaxAttempts = f.MaxAttempts
	}
	if f.MinBackoff != nil {
		c.MinBackoff = f.MinBackoff
	}
	if f.MaxBackoff != nil {
		c.MaxBackoff = f.MaxBackoff
	}
	if f.GrpcDeadline != nil {
		c.GrpcDeadline = f.GrpcDeadline
	}
	if f.RequestTimeout != nil {
		c.RequestTimeout = f.RequestTimeout
	}
	if f.NodeSuspectWindow != nil {
		c.NodeSuspectWindow = f.NodeSuspectWindow
	}
	if f.MaxNodesPerTransaction != nil {
		c.MaxNodesPerTransaction = f.MaxNodesPerTransaction
	}
	if f.TransactionValidDuration != nil {
		c.TransactionValidDuration = f.TransactionValidDuration
	}
	if f.DefaultMaxTransactionFee != nil {
		c.DefaultMaxTransactionFee = f.DefaultMaxTransactionFee
	}
	if f.DefaultMaxQueryPayment != nil {
		c.DefaultMaxQueryPayment = f.DefaultMaxQueryPayment
	}
	if f.ReceiptPollInterval != nil {
		c.ReceiptPollInterval = f.ReceiptPollInterval
	}
	if f.ReceiptTimeout != nil {
		c.ReceiptTimeout = f.ReceiptTimeout
	}
	if f.MaxRequestsPerSecond != nil {
		c.MaxRequestsPerSecond = f.MaxRequestsPerSecond
	}
	if f.RequestBurst != nil {
		c.RequestBurst = f.RequestBurst
	}
}

func (ns *NodeConfigs) SetFrom(fs *NodeConfigs) {
	for _, f := range *fs {
		if f.Name == nil {
			*ns = append(*ns, f)
		} else if i := slices.IndexFunc(*ns, func(n *NodeConfig) bool {
			return n.Name != nil && *n.Name == *f.Name
		}); i == -1 {
			*ns = append(*ns, f)
		} else {
			setFromNode((*ns)[i], f)
		}
	}
}

func setFromNode(n, f *NodeConfig) {
	if f.Name != nil {
		n.Name = f.Name
	}
	if f.AccountID != nil {
		n.AccountID = f.AccountID
	}
	if f.URL != nil {
		n.URL = f.URL
	}
}

// SetDefaults fills every unset field from the embedded defaults. Without
// explicit nodes the node list of the preset network is used.
func (c *TOMLConfig) SetDefaults() {
	set := defaults
	set.Execution.setFrom(&c.Execution)
	c.Execution = set.Execution
	if c.Monitor.BalancePollPeriod == nil {
		c.Monitor.BalancePollPeriod = defaults.Monitor.BalancePollPeriod
	}
	if c.Network == nil {
		c.Network = defaults.Network
	}
	if len(c.Nodes) == 0 {
		if nodes, ok := PresetNodes(*c.Network); ok {
			c.Nodes = nodes
		}
	}
}

func (c *TOMLConfig) ValidateConfig() error {
	var err error
	if c.Network != nil && *c.Network != "" {
		if _, ok := presets[*c.Network]; !ok {
			err = errors.Join(err, config.ErrInvalid{Name: "Network", Value: *c.Network, Msg: fmt.Sprintf("must be one of %v", Networks())})
		}
	}
	if c.LedgerID != nil {
		if _, lerr := entity.LedgerIDFromString(*c.LedgerID); lerr != nil {
			err = errors.Join(err, config.ErrInvalid{Name: "LedgerID", Value: *c.LedgerID, Msg: lerr.Error()})
		}
	}
	if c.Operator.AccountID != nil {
		if _, perr := entity.Parse(*c.Operator.AccountID); perr != nil {
			err = errors.Join(err, config.ErrInvalid{Name: "Operator.AccountID", Value: *c.Operator.AccountID, Msg: perr.Error()})
		}
	}

	if len(c.Nodes) == 0 {
		err = errors.Join(err, config.ErrMissing{Name: "Nodes", Msg: "must have at least one node or a preset Network"})
	}
	for _, n := range c.Nodes {
		err = errors.Join(err, n.ValidateConfig())
	}
	err = errors.Join(err, c.Nodes.validateKeys())

	if _, eerr := c.ExecutorConfig(); eerr != nil {
		err = errors.Join(err, eerr)
	}
	return err
}

func (n *NodeConfig) ValidateConfig() (err error) {
	if n.Name == nil {
		err = errors.Join(err, config.ErrMissing{Name: "Name", Msg: "required for all nodes"})
	} else if *n.Name == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "Name", Msg: "required for all nodes"})
	}
	if n.AccountID == nil {
		err = errors.Join(err, config.ErrMissing{Name: "AccountID", Msg: "required for all nodes"})
	} else if _, perr := entity.Parse(*n.AccountID); perr != nil {
		err = errors.Join(err, config.ErrInvalid{Name: "AccountID", Value: *n.AccountID, Msg: perr.Error()})
	}
	if n.URL == nil {
		err = errors.Join(err, config.ErrMissing{Name: "URL", Msg: "required for all nodes"})
	}
	return err
}

func (ns NodeConfigs) validateKeys() (err error) {
	names := config.UniqueStrings{}
	accounts := config.UniqueStrings{}
	urls := config.UniqueStrings{}
	for i, n := range ns {
		if names.IsDupe(n.Name) {
			err = errors.Join(err, config.NewErrDuplicate(fmt.Sprintf("Nodes.%d.Name", i), *n.Name))
		}
		if accounts.IsDupe(n.AccountID) {
			err = errors.Join(err, config.NewErrDuplicate(fmt.Sprintf("Nodes.%d.AccountID", i), *n.AccountID))
		}
		if n.URL != nil {
			u := (*url.URL)(n.URL)
			if urls.IsDupeFmt(u) {
				err = errors.Join(err, config.NewErrDuplicate(fmt.Sprintf("Nodes.%d.URL", i), u.String()))
			}
		}
	}
	return err
}

// Ledger is the explicit LedgerID, or the ledger of the preset network.
// Without either, checksums are not validated.
func (c *TOMLConfig) Ledger() (entity.LedgerID, error) {
	if c.LedgerID != nil {
		return entity.LedgerIDFromString(*c.LedgerID)
	}
	if c.Network != nil {
		if p, ok := presets[*c.Network]; ok {
			return p.ledger, nil
		}
	}
	return nil, nil
}

// OperatorAccountID returns the configured operator, if any.
func (c *TOMLConfig) OperatorAccountID() (entity.AccountID, bool, error) {
	if c.Operator.AccountID == nil || *c.Operator.AccountID == "" {
		return entity.AccountID{}, false, nil
	}
	id, err := entity.Parse(*c.Operator.AccountID)
	return id, err == nil, err
}

// ExecutorConfig converts the execution section. SetDefaults must have been called.
func (c *TOMLConfig) ExecutorConfig() (txm.Config, error) {
	ledger, err := c.Ledger()
	if err != nil {
		return txm.Config{}, err
	}
	e := c.Execution
	if e.MaxAttempts == nil || e.MinBackoff == nil || e.MaxBackoff == nil || e.GrpcDeadline == nil ||
		e.RequestTimeout == nil || e.NodeSuspectWindow == nil || e.MaxNodesPerTransaction == nil ||
		e.TransactionValidDuration == nil || e.DefaultMaxTransactionFee == nil || e.DefaultMaxQueryPayment == nil ||
		e.ReceiptPollInterval == nil || e.ReceiptTimeout == nil {
		return txm.Config{}, config.ErrMissing{Name: "Execution", Msg: "defaults not applied"}
	}
	cfg := txm.Config{
		LedgerID:                 ledger,
		MaxAttempts:              int(*e.MaxAttempts),
		MinBackoff:               e.MinBackoff.Duration(),
		MaxBackoff:               e.MaxBackoff.Duration(),
		GrpcDeadline:             e.GrpcDeadline.Duration(),
		RequestTimeout:           e.RequestTimeout.Duration(),
		NodeSuspectWindow:        e.NodeSuspectWindow.Duration(),
		MaxNodesPerTransaction:   int(*e.MaxNodesPerTransaction),
		TransactionValidDuration: e.TransactionValidDuration.Duration(),
		DefaultMaxTransactionFee: *e.DefaultMaxTransactionFee,
		DefaultMaxQueryPayment:   *e.DefaultMaxQueryPayment,
		ReceiptPollInterval:      e.ReceiptPollInterval.Duration(),
		ReceiptTimeout:           e.ReceiptTimeout.Duration(),
	}
	return cfg, cfg.Validate()
}

// NetworkNodes converts the node list for the registry.
func (c *TOMLConfig) NetworkNodes() ([]network.Node, error) {
	nodes := make([]network.Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if err := n.ValidateConfig(); err != nil {
			return nil, err
		}
		id, err := entity.Parse(*n.AccountID)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, network.Node{Name: *n.Name, AccountID: id, URL: (*url.URL)(n.URL)})
	}
	return nodes, nil
}

// RateLimit is the per node request rate and burst. A zero rate means unlimited.
func (c *TOMLConfig) RateLimit() (float64, int) {
	var perSecond float64
	burst := 1
	if c.Execution.MaxRequestsPerSecond != nil {
		perSecond = *c.Execution.MaxRequestsPerSecond
	}
	if c.Execution.RequestBurst != nil && *c.Execution.RequestBurst > 0 {
		burst = int(*c.Execution.RequestBurst)
	}
	return perSecond, burst
}

func (c *TOMLConfig) BalancePollPeriod() time.Duration {
	return c.Monitor.BalancePollPeriod.Duration()
}

func (c *TOMLConfig) TOMLString() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
