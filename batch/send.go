package batch

import (
	"context"
	"fmt"
	"iter"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/gas"
	"github.com/pilacorp/go-batchevm-sdk/keystore"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
	"github.com/pilacorp/go-batchevm-sdk/metrics"
	"github.com/pilacorp/go-batchevm-sdk/units"
)

// BatchSendCommand sends the same value from every selected account.
type BatchSendCommand struct {
	Selected []*keystore.Address
	// To is the recipient; empty creates a contract from Data.
	To string
	// AmountPerAddress is the value each account sends, in ether.
	AmountPerAddress string
	// GasPrice is the legacy gas price in gwei.
	GasPrice string
	// GasLimit is the gas limit of every transaction.
	GasLimit string
	// Data is optional hex call data, with or without 0x.
	Data string
}

// Op implements Command.
func (c *BatchSendCommand) Op() string { return metrics.OpSend }

// SetGas lets a gas.Suggestion fill the manual gas fields.
func (c *BatchSendCommand) SetGas(limit, priceGwei string) {
	c.GasLimit = limit
	c.GasPrice = priceGwei
}

var _ gas.Target = (*BatchSendCommand)(nil)

// BatchResult is the outcome of a batch send.
type BatchResult struct {
	// ID tags every record of the batch.
	ID      string
	Records []ledger.Transaction
	// Succeeded and Failed count records by final status.
	Succeeded int
	Failed    int
	// TotalAttempted is amount times the number of accounts, in ether.
	TotalAttempted string
}

// Transactions implements Result.
func (r *BatchResult) Transactions() []ledger.Transaction { return r.Records }

// sendParams are the validated, per-batch constants of a BatchSendCommand.
type sendParams struct {
	to       *common.Address
	toStr    string
	amount   string
	value    *big.Int
	gasPrice *big.Int
	priceStr string
	gasLimit uint64
	data     []byte
	dataHex  string
}

func (c *BatchSendCommand) validate() (*sendParams, error) {
	if len(c.Selected) == 0 {
		return nil, errs.ErrEmptyAddressSet
	}

	p := &sendParams{
		amount:   strings.TrimSpace(c.AmountPerAddress),
		priceStr: strings.TrimSpace(c.GasPrice),
	}
	if to := strings.TrimSpace(c.To); to != "" {
		if !bytecode.IsValidAddress(to) {
			return nil, fmt.Errorf("%w: recipient %q", errs.ErrInvalidAddress, to)
		}
		addr := common.HexToAddress(to)
		p.to = &addr
		p.toStr = to
	}

	var err error
	if p.value, err = units.ParseEther(p.amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if p.gasPrice, err = units.ParseGwei(p.priceStr); err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	p.gasLimit, err = strconv.ParseUint(strings.TrimSpace(c.GasLimit), 10, 64)
	if err != nil || p.gasLimit == 0 {
		return nil, fmt.Errorf("%w: gas limit %q", errs.ErrInvalidAmount, c.GasLimit)
	}
	if p.data, p.dataHex, err = calldata.NormalizeData(c.Data); err != nil {
		return nil, err
	}
	return p, nil
}

// sendTask is one account's slot in a batch.
type sendTask struct {
	index   int
	account *keystore.Address
}

func sendTasks(selected []*keystore.Address) iter.Seq[sendTask] {
	return func(yield func(sendTask) bool) {
		for i, a := range selected {
			if !yield(sendTask{index: i, account: a}) {
				return
			}
		}
	}
}

func (c *BatchSendCommand) run(ctx context.Context, o *Orchestrator) (Result, error) {
	p, err := c.validate()
	if err != nil {
		return nil, err
	}
	total, err := units.MulString(p.amount, len(c.Selected))
	if err != nil {
		return nil, err
	}
	chainID, err := o.resolveChainID(ctx)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{ID: uuid.NewString(), TotalAttempted: total}
	logger := o.logger.With(zap.String("op", c.Op()), zap.String("batchId", res.ID))
	logger.Info("batch send started",
		zap.Int("accounts", len(c.Selected)),
		zap.String("to", p.toStr),
		zap.String("amount", p.amount),
		zap.String("total", total),
	)

	for task := range sendTasks(c.Selected) {
		rec := o.sendOne(ctx, res.ID, chainID, p, task, logger)
		res.Records = append(res.Records, rec)
		if rec.Status == ledger.StatusSuccess {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	logger.Info("batch send finished", zap.Int("succeeded", res.Succeeded), zap.Int("failed", res.Failed))
	return res, nil
}

// sendOne runs a single account's transfer. Errors never escape: they end up
// in the returned record.
func (o *Orchestrator) sendOne(ctx context.Context, batchID string, chainID *big.Int, p *sendParams, task sendTask, logger *zap.Logger) ledger.Transaction {
	from := task.account.Address
	logger = logger.With(zap.Int("index", task.index), zap.String("from", from))

	s := submission{
		op:      metrics.OpSend,
		chainID: chainID,
		logger:  logger,
		record: ledger.Transaction{
			From:     from,
			To:       p.toStr,
			Amount:   p.amount,
			Type:     ledger.TypeDirect,
			GasPrice: p.priceStr,
			GasUsed:  strconv.FormatUint(p.gasLimit, 10),
			Data:     p.dataHex,
			BatchID:  batchID,
		},
	}

	var err error
	if s.signer, err = task.account.Key.Signer(); err != nil {
		return o.fail(s, fmt.Errorf("%w: %v", errs.ErrSigningFailure, err)).rec
	}

	nonce, err := o.provider.PendingNonceAt(ctx, common.HexToAddress(from))
	if err != nil {
		return o.fail(s, fmt.Errorf("%w: failed to get nonce: %v", errs.ErrProviderUnavailable, err)).rec
	}

	s.tx = types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: p.gasPrice,
		Gas:      p.gasLimit,
		To:       p.to,
		Value:    p.value,
		Data:     p.data,
	})

	t, hash, err := o.submit(ctx, s)
	if err != nil {
		return t.rec
	}
	_, _ = o.confirm(ctx, metrics.OpSend, t, hash, logger)
	return t.rec
}
