package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
	"github.com/pilacorp/go-batchevm-sdk/metrics"
	"github.com/pilacorp/go-batchevm-sdk/signer"
)

// CallCommand invokes one entry point of a deployed batch contract. The
// contract iterates its embedded address table on-chain, so a single
// transaction is sent.
type CallCommand struct {
	Kind calldata.FunctionKind
	// ContractAddress is the target; empty targets the zero address.
	ContractAddress string
	// Address is the from address for TransferStyle, the to address for
	// ReceiveStyle.
	Address string
	// Amount is the raw token amount in base units; empty means zero.
	Amount string
	Caller signer.SignerProvider
}

// Op implements Command.
func (c *CallCommand) Op() string { return metrics.OpCall }

// CallResult is the outcome of a contract call.
type CallResult struct {
	Record ledger.Transaction
}

// Transactions implements Result.
func (r *CallResult) Transactions() []ledger.Transaction {
	return []ledger.Transaction{r.Record}
}

func (c *CallCommand) run(ctx context.Context, o *Orchestrator) (Result, error) {
	if c.Caller == nil {
		return nil, errors.New("caller signer is required")
	}

	target := common.Address{}
	if addr := strings.TrimSpace(c.ContractAddress); addr != "" {
		if !bytecode.IsValidAddress(addr) {
			return nil, fmt.Errorf("%w: contract %q", errs.ErrInvalidAddress, addr)
		}
		target = common.HexToAddress(addr)
	}

	amount, err := calldata.ParseAmount(c.Amount)
	if err != nil {
		return nil, err
	}
	data, err := calldata.EncodeKind(c.Kind, strings.TrimSpace(c.Address), amount)
	if err != nil {
		return nil, err
	}

	from := c.Caller.GetAddress()
	logger := o.logger.With(zap.String("op", c.Op()), zap.String("from", from), zap.Stringer("kind", c.Kind))
	logger.Info("calling contract", zap.String("contract", target.Hex()), zap.String("arg", c.Address), zap.Stringer("amount", amount))

	s := submission{
		op:     c.Op(),
		signer: c.Caller,
		logger: logger,
		record: ledger.Transaction{
			From:   from,
			To:     target.Hex(),
			Amount: "0",
			Type:   ledger.TypeContract,
			Data:   hexutil.Encode(data),
		},
	}

	t, _, err := o.sendEstimated(ctx, s, &target, data)
	if err != nil {
		return nil, fmt.Errorf("failed to call contract: %w", err)
	}
	return &CallResult{Record: t.rec}, nil
}
