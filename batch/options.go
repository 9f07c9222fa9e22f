package batch

import (
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/config"
	"github.com/pilacorp/go-batchevm-sdk/metrics"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records operation outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithChainID fixes the chain ID used for signing. Without it the chain ID
// is queried from the provider on first use.
func WithChainID(id int64) Option {
	return func(o *Orchestrator) {
		if id > 0 {
			o.chainID = big.NewInt(id)
		}
	}
}

// WithReceiptTimeout bounds the wait for each receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.receiptTimeout = d }
}

// WithPollInterval sets the delay between receipt lookups.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithGasBuffer sets the percentage added to estimated gas for deploy and call.
func WithGasBuffer(pct uint64) Option {
	return func(o *Orchestrator) { o.gasBufferPct = pct }
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithConfig applies the chain and timing settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *Orchestrator) {
		if cfg == nil {
			return
		}
		WithChainID(cfg.ChainID)(o)
		WithReceiptTimeout(cfg.ReceiptTimeout)(o)
		WithPollInterval(cfg.PollInterval)(o)
		WithGasBuffer(cfg.GasBuffer())(o)
	}
}
