package batch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/gas"
	"github.com/pilacorp/go-batchevm-sdk/units"
)

// sendEstimated submits one transaction from s.signer with an estimated,
// buffered gas limit and the suggested gas price, then waits for it. Every
// failure leaves a record: the failed sentinel before submission, or the
// pending record flipped to failed afterwards.
func (o *Orchestrator) sendEstimated(ctx context.Context, s submission, to *common.Address, data []byte) (*tracked, *types.Receipt, error) {
	from := common.HexToAddress(s.signer.GetAddress())

	chainID, err := o.resolveChainID(ctx)
	if err != nil {
		return o.fail(s, err), nil, err
	}
	s.chainID = chainID

	estimated, err := o.provider.EstimateGas(ctx, ethereum.CallMsg{From: from, To: to, Data: data})
	if err != nil {
		err = fmt.Errorf("%w: failed to estimate gas: %v", errs.ErrProviderUnavailable, err)
		return o.fail(s, err), nil, err
	}
	price, err := o.provider.SuggestGasPrice(ctx)
	if err != nil {
		err = fmt.Errorf("%w: failed to get gas price: %v", errs.ErrProviderUnavailable, err)
		return o.fail(s, err), nil, err
	}
	nonce, err := o.provider.PendingNonceAt(ctx, from)
	if err != nil {
		err = fmt.Errorf("%w: failed to get nonce: %v", errs.ErrProviderUnavailable, err)
		return o.fail(s, err), nil, err
	}

	limit := gas.WithBuffer(estimated, o.gasBufferPct)
	s.record.GasPrice = units.FormatGwei(price)
	s.record.GasUsed = strconv.FormatUint(limit, 10)
	s.tx = types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      limit,
		To:       to,
		Value:    common.Big0,
		Data:     data,
	})

	t, hash, err := o.submit(ctx, s)
	if err != nil {
		return t, nil, err
	}
	receipt, err := o.confirm(ctx, s.op, t, hash, s.logger)
	return t, receipt, err
}
