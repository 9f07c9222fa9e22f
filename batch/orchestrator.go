// Package batch runs multi-account operations against an EVM node.
//
// An Orchestrator executes commands (batch send, deploy, call) one at a time.
// Within a batch send every selected account is processed strictly in order:
// each account signs with its own key and its own nonce sequence, and a
// failure on one account is recorded and skipped rather than aborting the
// batch. Every submitted transaction is appended to the ledger and updated in
// place once its receipt arrives.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/chain"
	"github.com/pilacorp/go-batchevm-sdk/config"
	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
	"github.com/pilacorp/go-batchevm-sdk/metrics"
	"github.com/pilacorp/go-batchevm-sdk/signer"
)

// Command is an operation the Orchestrator can execute.
type Command interface {
	// Op names the operation for logs and metrics.
	Op() string
	run(ctx context.Context, o *Orchestrator) (Result, error)
}

// Result is the outcome of an executed Command.
type Result interface {
	// Transactions returns the ledger records the command produced.
	Transactions() []ledger.Transaction
}

// Orchestrator owns the write side of a ledger and runs commands against a
// provider. Commands are serialized; concurrent Execute calls wait.
type Orchestrator struct {
	provider chain.Provider
	ledger   *ledger.Ledger

	logger         *zap.Logger
	metrics        *metrics.Metrics
	chainID        *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration
	gasBufferPct   uint64
	now            func() time.Time

	mu sync.Mutex
}

// New returns an Orchestrator that submits through provider and records into l.
func New(provider chain.Provider, l *ledger.Ledger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:       provider,
		ledger:         l,
		logger:         zap.NewNop(),
		receiptTimeout: config.DefaultReceiptTimeout,
		pollInterval:   config.DefaultPollInterval,
		gasBufferPct:   config.DefaultGasBufferPct,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.ledger == nil {
		o.ledger = ledger.New()
	}
	return o
}

// Ledger returns the ledger the orchestrator writes to.
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// Execute runs cmd to completion.
func (o *Orchestrator) Execute(ctx context.Context, cmd Command) (Result, error) {
	if cmd == nil {
		return nil, errors.New("command is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.Operations.WithLabelValues(cmd.Op()).Inc()
	}
	return cmd.run(ctx, o)
}

func (o *Orchestrator) resolveChainID(ctx context.Context) (*big.Int, error) {
	if o.chainID != nil {
		return o.chainID, nil
	}
	id, err := o.provider.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get chain ID: %v", errs.ErrProviderUnavailable, err)
	}
	o.chainID = id
	return id, nil
}

// submission is one transaction on its way to the ledger.
type submission struct {
	op      string
	chainID *big.Int
	signer  signer.SignerProvider
	tx      *types.Transaction
	record  ledger.Transaction
	logger  *zap.Logger
}

// tracked is the orchestrator's working copy of a ledger record. Every
// mutation goes to both, so results never depend on what the ledger still
// holds.
type tracked struct {
	id  ledger.ID
	rec ledger.Transaction
}

func (o *Orchestrator) track(rec ledger.Transaction) *tracked {
	return &tracked{id: o.ledger.Append(rec), rec: rec}
}

func (o *Orchestrator) mutate(t *tracked, logger *zap.Logger, fn func(tx *ledger.Transaction)) {
	fn(&t.rec)
	if !o.ledger.Update(t.id, fn) {
		logger.Debug("record no longer in ledger", zap.String("hash", t.rec.Hash))
	}
}

// submit signs and sends s.tx, appending a pending record on success. On
// failure it appends the record with the failed sentinel hash and returns
// that record alongside the error.
func (o *Orchestrator) submit(ctx context.Context, s submission) (*tracked, common.Hash, error) {
	signed, err := signer.SignTx(s.chainID, s.signer, s.tx)
	if err != nil {
		err = fmt.Errorf("%w: %v", errs.ErrSigningFailure, err)
		o.count(func(m *metrics.Metrics) { m.SigningFailure.WithLabelValues(s.op).Inc() })
		return o.fail(s, err), common.Hash{}, err
	}

	if err := o.provider.SendTransaction(ctx, signed); err != nil {
		err = fmt.Errorf("%w: %v", errs.ErrSubmissionFailure, err)
		o.count(func(m *metrics.Metrics) { m.SubmissionFailure.WithLabelValues(s.op).Inc() })
		return o.fail(s, err), common.Hash{}, err
	}

	rec := s.record
	rec.Hash = signed.Hash().Hex()
	rec.Status = ledger.StatusPending
	rec.Timestamp = ledger.Timestamp(o.now())
	t := o.track(rec)

	s.logger.Info("transaction submitted", zap.String("hash", rec.Hash), zap.Uint64("nonce", signed.Nonce()))
	return t, signed.Hash(), nil
}

// fail records a transaction that never reached the node.
func (o *Orchestrator) fail(s submission, err error) *tracked {
	rec := s.record
	rec.Hash = ledger.FailedHash
	rec.Status = ledger.StatusFailed
	rec.Timestamp = ledger.Timestamp(o.now())
	rec.GasUsed = ""
	rec.GasPrice = ""
	rec.Error = err.Error()

	o.count(func(m *metrics.Metrics) { m.TxFailure.WithLabelValues(s.op).Inc() })
	s.logger.Warn("transaction failed before submission", zap.Error(err))
	return o.track(rec)
}

// confirm waits for the receipt of hash and updates t in place.
func (o *Orchestrator) confirm(ctx context.Context, op string, t *tracked, hash common.Hash, logger *zap.Logger) (*types.Receipt, error) {
	start := o.now()
	receipt, err := chain.WaitForReceipt(ctx, o.provider, hash, o.receiptTimeout, o.pollInterval)
	if err != nil {
		err = fmt.Errorf("%w: %v", errs.ErrConfirmationFailure, err)
		o.mutate(t, logger, func(tx *ledger.Transaction) {
			tx.Status = ledger.StatusFailed
			tx.Error = err.Error()
		})
		o.count(func(m *metrics.Metrics) { m.TxFailure.WithLabelValues(op).Inc() })
		logger.Warn("transaction not confirmed", zap.String("hash", hash.Hex()), zap.Error(err))
		return nil, err
	}

	o.count(func(m *metrics.Metrics) {
		m.ConfirmationTime.Observe(float64(o.now().Sub(start).Milliseconds()))
	})

	gasUsed := strconv.FormatUint(receipt.GasUsed, 10)
	if receipt.Status != types.ReceiptStatusSuccessful {
		err = fmt.Errorf("%w: transaction %s reverted", errs.ErrConfirmationFailure, hash.Hex())
		o.mutate(t, logger, func(tx *ledger.Transaction) {
			tx.Status = ledger.StatusFailed
			tx.GasUsed = gasUsed
			tx.Error = err.Error()
		})
		o.count(func(m *metrics.Metrics) { m.TxFailure.WithLabelValues(op).Inc() })
		logger.Warn("transaction reverted", zap.String("hash", hash.Hex()), zap.String("gasUsed", gasUsed))
		return receipt, err
	}

	o.mutate(t, logger, func(tx *ledger.Transaction) {
		tx.Status = ledger.StatusSuccess
		tx.GasUsed = gasUsed
	})
	o.count(func(m *metrics.Metrics) { m.TxSuccess.WithLabelValues(op).Inc() })
	logger.Info("transaction confirmed", zap.String("hash", hash.Hex()), zap.String("gasUsed", gasUsed), zap.Stringer("block", receipt.BlockNumber))
	return receipt, nil
}

func (o *Orchestrator) count(fn func(m *metrics.Metrics)) {
	if o.metrics != nil {
		fn(o.metrics)
	}
}

// BatchSend executes cmd and returns its typed result.
func (o *Orchestrator) BatchSend(ctx context.Context, cmd *BatchSendCommand) (*BatchResult, error) {
	res, err := o.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return res.(*BatchResult), nil
}

// Deploy executes cmd and returns its typed result.
func (o *Orchestrator) Deploy(ctx context.Context, cmd *DeployCommand) (*DeployResult, error) {
	res, err := o.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return res.(*DeployResult), nil
}

// Call executes cmd and returns the resulting record.
func (o *Orchestrator) Call(ctx context.Context, cmd *CallCommand) (*ledger.Transaction, error) {
	res, err := o.Execute(ctx, cmd)
	if err != nil {
		return nil, err
	}
	rec := res.(*CallResult).Record
	return &rec, nil
}
