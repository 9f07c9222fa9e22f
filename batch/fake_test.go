package batch

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-batchevm-sdk/chain"
)

var errNotFound = errors.New("not found")

// fakeProvider mines every accepted transaction immediately. Methods the
// orchestrator does not use panic through the nil embedded interface.
type fakeProvider struct {
	chain.Provider

	mu        sync.Mutex
	chainID   *big.Int
	nonces    map[common.Address]uint64
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
	rejectTx  map[common.Address]error
	revert    bool
	noReceipt bool
	gasErr    error
	estimate  uint64
	gasPrice  *big.Int
	lastMsg   ethereum.CallMsg
	// onReceipt runs before every receipt lookup.
	onReceipt func()
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		chainID:  big.NewInt(1337),
		nonces:   map[common.Address]uint64{},
		receipts: map[common.Hash]*types.Receipt{},
		rejectTx: map[common.Address]error{},
		estimate: 100_000,
		gasPrice: big.NewInt(2_000_000_000),
	}
}

func (f *fakeProvider) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeProvider) PendingNonceAt(ctx context.Context, a common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[a], nil
}

func (f *fakeProvider) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMsg = msg
	return f.estimate, f.gasErr
}

func (f *fakeProvider) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeProvider) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.rejectTx[from]; err != nil {
		return err
	}
	if tx.Nonce() != f.nonces[from] {
		return errors.New("nonce too low")
	}
	f.nonces[from]++
	f.sent = append(f.sent, tx)

	if f.noReceipt {
		return nil
	}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		GasUsed:     21_000,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(f.sent))),
	}
	if f.revert {
		receipt.Status = types.ReceiptStatusFailed
	}
	if tx.To() == nil {
		receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
	}
	f.receipts[tx.Hash()] = receipt
	return nil
}

func (f *fakeProvider) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	if f.onReceipt != nil {
		f.onReceipt()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, errNotFound
}
