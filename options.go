package batchevm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/chain"
	"github.com/pilacorp/go-batchevm-sdk/config"
)

// ClientOption is a functional option type for configuring a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	cfg        config.Config
	logger     *zap.Logger
	provider   chain.Provider
	registerer prometheus.Registerer
	now        func() time.Time
}

// WithConfig replaces the whole configuration. Zero fields take defaults.
func WithConfig(cfg config.Config) ClientOption {
	return func(o *clientOptions) { o.cfg = cfg }
}

// WithRPC sets the JSON-RPC endpoint.
func WithRPC(rpc string) ClientOption {
	return func(o *clientOptions) { o.cfg.RPC = rpc }
}

// WithChainID pins the signing chain ID instead of asking the node.
func WithChainID(chainID int64) ClientOption {
	return func(o *clientOptions) { o.cfg.ChainID = chainID }
}

// WithTokenAddress sets the default token embedded in assembled bytecode.
func WithTokenAddress(addr string) ClientOption {
	return func(o *clientOptions) { o.cfg.TokenAddress = addr }
}

// WithReceiptTimeout bounds the wait for each receipt.
func WithReceiptTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.cfg.ReceiptTimeout = d }
}

// WithPollInterval sets the delay between receipt lookups.
func WithPollInterval(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.cfg.PollInterval = d }
}

// WithGasBuffer sets the percentage added to estimated gas for deploy and
// call. 0 sends the bare estimate.
func WithGasBuffer(pct uint64) ClientOption {
	return func(o *clientOptions) { o.cfg.GasBufferPct = &pct }
}

// WithLogger sets the logger shared by every component. It takes precedence
// over a logger carried by the NewClient context.
func WithLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithProvider uses p instead of dialling the configured RPC endpoint.
func WithProvider(p chain.Provider) ClientOption {
	return func(o *clientOptions) { o.provider = p }
}

// WithRegisterer registers the orchestrator metrics with reg.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(o *clientOptions) { o.registerer = reg }
}

// WithClock overrides the time source of records and exports.
func WithClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) { o.now = now }
}
