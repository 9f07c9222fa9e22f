// Package batchevm manages a set of EVM accounts and runs batched transfers,
// batch contract deployments and batch contract calls from them.
//
// A Client wires the pieces together: a keystore of accounts, a ledger of
// submitted transactions, the batch orchestrator and a gas estimator, all
// sharing one node connection.
//
//	c, err := batchevm.NewClient(ctx, batchevm.WithRPC("http://127.0.0.1:8545"))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if _, err := c.Store().Generate(ctx, 100); err != nil {
//		return err
//	}
//	c.Store().SelectAll(true)
//	res, err := c.BatchSend(ctx, "0x...", "0.01", "20", "21000", "")
package batchevm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/batch"
	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/chain"
	"github.com/pilacorp/go-batchevm-sdk/config"
	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/gas"
	"github.com/pilacorp/go-batchevm-sdk/keystore"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
	logging "github.com/pilacorp/go-batchevm-sdk/log"
	"github.com/pilacorp/go-batchevm-sdk/metrics"
	"github.com/pilacorp/go-batchevm-sdk/signer"
)

// Client is the entry point of the SDK.
type Client struct {
	cfg       *config.Config
	logger    *zap.Logger
	provider  chain.Provider
	dialed    *chain.Client
	store     *keystore.Store
	ledger    *ledger.Ledger
	orch      *batch.Orchestrator
	estimator *gas.Estimator
	metrics   *metrics.Metrics
}

// NewClient creates a Client. Unless WithProvider is given it dials the
// configured RPC endpoint. Without WithLogger the logger stored in ctx is
// used, if any.
func NewClient(ctx context.Context, options ...ClientOption) (*Client, error) {
	opts := clientOptions{now: time.Now}
	for _, opt := range options {
		opt(&opts)
	}

	cfg := config.New(opts.cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TokenAddress != "" && !bytecode.IsValidAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("invalid token address: %s", cfg.TokenAddress)
	}

	c := &Client{
		cfg:      cfg,
		logger:   opts.logger,
		provider: opts.provider,
		ledger:   ledger.New(),
		metrics:  metrics.NewMetrics(opts.registerer),
	}
	if c.logger == nil {
		c.logger = logging.FromContext(ctx)
	}

	if c.provider == nil {
		dialed, err := chain.Dial(ctx, cfg.RPC)
		if err != nil {
			return nil, err
		}
		c.dialed = dialed
		c.provider = dialed
	}

	c.store = keystore.NewStore(
		keystore.WithLogger(c.logger.Named("keystore")),
		keystore.WithChunkSize(cfg.ChunkSize),
		keystore.WithClock(opts.now),
	)
	c.orch = batch.New(c.provider, c.ledger,
		batch.WithConfig(cfg),
		batch.WithLogger(c.logger.Named("batch")),
		batch.WithMetrics(c.metrics),
		batch.WithClock(opts.now),
	)
	c.estimator = gas.NewEstimator(c.provider, gas.WithLogger(c.logger.Named("gas")))

	c.logger.Debug("client ready", zap.String("rpc", cfg.RPC), zap.Int64("chainId", cfg.ChainID))
	return c, nil
}

// Close releases the node connection if the client dialled it.
func (c *Client) Close() {
	if c.dialed != nil {
		c.dialed.Close()
	}
}

// Config returns the effective configuration.
func (c *Client) Config() config.Config { return *c.cfg }

// Store returns the account store.
func (c *Client) Store() *keystore.Store { return c.store }

// Ledger returns the transaction history.
func (c *Client) Ledger() *ledger.Ledger { return c.ledger }

// Orchestrator returns the batch orchestrator.
func (c *Client) Orchestrator() *batch.Orchestrator { return c.orch }

// Metrics returns the orchestrator instruments.
func (c *Client) Metrics() *metrics.Metrics { return c.metrics }

// Provider returns the node provider.
func (c *Client) Provider() chain.Provider { return c.provider }

// RefreshBalances updates the balance of every stored account.
func (c *Client) RefreshBalances(ctx context.Context) {
	c.store.RefreshBalances(ctx, c.provider)
}

// Assemble builds the batch contract bytecode for the selected accounts. An
// empty token falls back to the configured token address.
func (c *Client) Assemble(token string) (string, error) {
	if token == "" {
		token = c.cfg.TokenAddress
	}
	addrs := keystore.Addresses(c.store.Selected())
	if err := bytecode.CheckCount(len(addrs)); err != nil {
		return "", err
	}
	return bytecode.Assemble(addrs, token)
}

// Estimate suggests gas settings for a transfer from the first selected
// account, as the batch would send it.
func (c *Client) Estimate(ctx context.Context, to, amount, data string) (*gas.Suggestion, error) {
	selected := c.store.Selected()
	if len(selected) == 0 {
		return nil, fmt.Errorf("failed to estimate gas: %w", errs.ErrEmptyAddressSet)
	}
	return c.estimator.Estimate(ctx, gas.Request{
		From:   selected[0].Address,
		To:     to,
		Amount: amount,
		Data:   data,
	})
}

// BatchSend sends amount ether from every selected account to to.
func (c *Client) BatchSend(ctx context.Context, to, amount, gasPriceGwei, gasLimit, data string) (*batch.BatchResult, error) {
	return c.orch.BatchSend(ctx, &batch.BatchSendCommand{
		Selected:         c.store.Selected(),
		To:               to,
		AmountPerAddress: amount,
		GasPrice:         gasPriceGwei,
		GasLimit:         gasLimit,
		Data:             data,
	})
}

// Deploy deploys the batch contract for the selected accounts, signed by
// deployer. An empty token falls back to the configured token address.
func (c *Client) Deploy(ctx context.Context, deployer signer.SignerProvider, token string) (*batch.DeployResult, error) {
	if token == "" {
		token = c.cfg.TokenAddress
	}
	return c.orch.Deploy(ctx, &batch.DeployCommand{
		Selected:     c.store.Selected(),
		TokenAddress: token,
		Deployer:     deployer,
	})
}

// Call invokes kind on the batch contract at contract, signed by caller.
func (c *Client) Call(ctx context.Context, caller signer.SignerProvider, kind calldata.FunctionKind, contract, addr, amount string) (*ledger.Transaction, error) {
	return c.orch.Call(ctx, &batch.CallCommand{
		Kind:            kind,
		ContractAddress: contract,
		Address:         addr,
		Amount:          amount,
		Caller:          caller,
	})
}
