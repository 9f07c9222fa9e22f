package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/keystore"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
	"github.com/pilacorp/go-batchevm-sdk/metrics"
	"github.com/pilacorp/go-batchevm-sdk/signer"
)

// DeployCommand deploys the batch contract embedding the selected addresses.
type DeployCommand struct {
	Selected []*keystore.Address
	// Bytecode is the creation payload; when empty it is assembled from
	// Selected and TokenAddress.
	Bytecode     string
	TokenAddress string
	// Deployer signs and pays for the deployment. It becomes the contract owner.
	Deployer signer.SignerProvider
}

// Op implements Command.
func (c *DeployCommand) Op() string { return metrics.OpDeploy }

// DeployResult is the outcome of a deployment.
type DeployResult struct {
	Record          ledger.Transaction
	ContractAddress string
}

// Transactions implements Result.
func (r *DeployResult) Transactions() []ledger.Transaction {
	return []ledger.Transaction{r.Record}
}

func (c *DeployCommand) run(ctx context.Context, o *Orchestrator) (Result, error) {
	if len(c.Selected) == 0 {
		return nil, errs.ErrEmptyAddressSet
	}
	if c.Deployer == nil {
		return nil, errors.New("deployer signer is required")
	}

	code := c.Bytecode
	if code == "" {
		if err := bytecode.CheckCount(len(c.Selected)); err != nil {
			return nil, err
		}
		var err error
		if code, err = bytecode.Assemble(keystore.Addresses(c.Selected), c.TokenAddress); err != nil {
			return nil, fmt.Errorf("failed to assemble bytecode: %w", err)
		}
	}
	data, code, err := calldata.NormalizeData(code)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty bytecode", errs.ErrInvalidData)
	}

	from := c.Deployer.GetAddress()
	logger := o.logger.With(zap.String("op", c.Op()), zap.String("from", from))
	logger.Info("deploying contract", zap.Int("accounts", len(c.Selected)), zap.Int("size", bytecode.Size(code)))

	s := submission{
		op:     c.Op(),
		signer: c.Deployer,
		logger: logger,
		record: ledger.Transaction{
			From:   from,
			To:     "",
			Amount: "0",
			Type:   ledger.TypeContract,
			Data:   code,
		},
	}

	t, receipt, err := o.sendEstimated(ctx, s, nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy contract: %w", err)
	}

	res := &DeployResult{
		Record:          t.rec,
		ContractAddress: receipt.ContractAddress.Hex(),
	}
	logger.Info("contract deployed", zap.String("contract", res.ContractAddress))
	return res, nil
}
