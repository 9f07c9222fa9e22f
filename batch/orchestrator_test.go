package batch

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/config"
	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/gas"
	"github.com/pilacorp/go-batchevm-sdk/keystore"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
	"github.com/pilacorp/go-batchevm-sdk/metrics"
	"github.com/pilacorp/go-batchevm-sdk/signer"
)

const (
	recipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	tokenAddr = "0x2222222222222222222222222222222222222222"
	ownerKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func accounts(t *testing.T, n int) []*keystore.Address {
	t.Helper()
	list, err := keystore.NewStore().Generate(context.Background(), n)
	require.NoError(t, err)
	return list
}

func sendCmd(selected []*keystore.Address) *BatchSendCommand {
	return &BatchSendCommand{
		Selected:         selected,
		To:               recipient,
		AmountPerAddress: "0.01",
		GasPrice:         "20",
		GasLimit:         "21000",
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
}

func TestBatchSend(t *testing.T) {
	p := newFakeProvider()
	l := ledger.New()
	m := metrics.NewMetrics(nil)
	o := New(p, l, WithLogger(zaptest.NewLogger(t)), WithMetrics(m), WithClock(fixedClock))

	selected := accounts(t, 3)
	res, err := o.BatchSend(context.Background(), sendCmd(selected))
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, "0.03", res.TotalAttempted)
	require.Len(t, res.Records, 3)
	assert.Equal(t, res.Records, l.List())

	for i, rec := range res.Records {
		assert.Equal(t, selected[i].Address, rec.From, "records keep selection order")
		assert.Equal(t, recipient, rec.To)
		assert.Equal(t, "0.01", rec.Amount)
		assert.Equal(t, ledger.TypeDirect, rec.Type)
		assert.Equal(t, ledger.StatusSuccess, rec.Status)
		assert.Equal(t, "20", rec.GasPrice)
		assert.Equal(t, "21000", rec.GasUsed)
		assert.Equal(t, "2024-01-15T10:30:45.000Z", rec.Timestamp)
		assert.Equal(t, res.ID, rec.BatchID)
		assert.Equal(t, p.sent[i].Hash().Hex(), rec.Hash)
	}

	tx := p.sent[0]
	assert.Equal(t, big.NewInt(10_000_000_000_000_000), tx.Value())
	assert.Equal(t, big.NewInt(20_000_000_000), tx.GasPrice())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.TxSuccess.WithLabelValues(metrics.OpSend)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues(metrics.OpSend)))
}

func TestBatchSendSigningFailureIsIsolated(t *testing.T) {
	p := newFakeProvider()
	l := ledger.New()
	o := New(p, l)

	selected := accounts(t, 3)
	selected[1].Key.Destroy()

	res, err := o.BatchSend(context.Background(), sendCmd(selected))
	require.NoError(t, err)

	require.Equal(t, 3, l.Len())
	records := l.List()
	assert.Equal(t, ledger.StatusSuccess, records[0].Status)
	assert.Equal(t, ledger.FailedHash, records[1].Hash)
	assert.Equal(t, ledger.StatusFailed, records[1].Status)
	assert.Equal(t, selected[1].Address, records[1].From)
	assert.Contains(t, records[1].Error, errs.ErrSigningFailure.Error())
	assert.Empty(t, records[1].GasUsed)
	assert.Equal(t, ledger.StatusSuccess, records[2].Status)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, p.sent, 2)
}

func TestBatchSendSubmissionFailure(t *testing.T) {
	p := newFakeProvider()
	o := New(p, ledger.New())

	selected := accounts(t, 2)
	p.rejectTx[common.HexToAddress(selected[0].Address)] = errors.New("insufficient funds for gas * price + value")

	res, err := o.BatchSend(context.Background(), sendCmd(selected))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, ledger.FailedHash, res.Records[0].Hash)
	assert.Contains(t, res.Records[0].Error, "insufficient funds")
	assert.Contains(t, res.Records[0].Error, errs.ErrSubmissionFailure.Error())
	assert.Equal(t, ledger.StatusSuccess, res.Records[1].Status)
}

func TestBatchSendReverted(t *testing.T) {
	p := newFakeProvider()
	p.revert = true
	o := New(p, ledger.New())

	res, err := o.BatchSend(context.Background(), sendCmd(accounts(t, 1)))
	require.NoError(t, err)

	rec := res.Records[0]
	assert.Equal(t, ledger.StatusFailed, rec.Status)
	assert.NotEqual(t, ledger.FailedHash, rec.Hash, "reverted transactions keep their hash")
	assert.Equal(t, p.sent[0].Hash().Hex(), rec.Hash)
	assert.Equal(t, "21000", rec.GasUsed)
	assert.Equal(t, 1, res.Failed)
}

func TestBatchSendConfirmationTimeout(t *testing.T) {
	p := newFakeProvider()
	p.noReceipt = true
	l := ledger.New()
	o := New(p, l, WithReceiptTimeout(30*time.Millisecond), WithPollInterval(5*time.Millisecond))

	var statuses []ledger.Status
	l.Subscribe(func(ev ledger.Event) { statuses = append(statuses, ev.Record.Status) })

	res, err := o.BatchSend(context.Background(), sendCmd(accounts(t, 1)))
	require.NoError(t, err)

	rec := res.Records[0]
	assert.Equal(t, ledger.StatusFailed, rec.Status)
	assert.Equal(t, p.sent[0].Hash().Hex(), rec.Hash)
	assert.Contains(t, rec.Error, errs.ErrConfirmationFailure.Error())
	assert.Equal(t, []ledger.Status{ledger.StatusPending, ledger.StatusFailed}, statuses)
}

func TestBatchSendCancelledContext(t *testing.T) {
	p := newFakeProvider()
	o := New(p, ledger.New(), WithChainID(1337))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.BatchSend(ctx, sendCmd(accounts(t, 3)))
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	for _, rec := range res.Records {
		assert.Equal(t, ledger.FailedHash, rec.Hash)
		assert.Equal(t, ledger.StatusFailed, rec.Status)
	}
	assert.Empty(t, p.sent)
}

func TestBatchSendSurvivesLedgerClear(t *testing.T) {
	p := newFakeProvider()
	l := ledger.New()
	var once sync.Once
	p.onReceipt = func() { once.Do(l.Clear) }

	selected := accounts(t, 2)
	res, err := New(p, l, WithLogger(zaptest.NewLogger(t))).BatchSend(context.Background(), sendCmd(selected))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, res.Records, 2)
	for i, rec := range res.Records {
		assert.Equal(t, selected[i].Address, rec.From)
		assert.Equal(t, p.sent[i].Hash().Hex(), rec.Hash)
		assert.Equal(t, ledger.StatusSuccess, rec.Status)
		assert.Equal(t, "21000", rec.GasUsed)
	}

	// only the record appended after the clear is still held
	require.Equal(t, 1, l.Len())
	assert.Equal(t, res.Records[1], l.List()[0])
}

func TestBatchSendValidation(t *testing.T) {
	selected := accounts(t, 1)

	tests := []struct {
		name string
		mod  func(c *BatchSendCommand)
		want error
	}{
		{name: "empty selection", mod: func(c *BatchSendCommand) { c.Selected = nil }, want: errs.ErrEmptyAddressSet},
		{name: "bad recipient", mod: func(c *BatchSendCommand) { c.To = "0x1234" }, want: errs.ErrInvalidAddress},
		{name: "negative amount", mod: func(c *BatchSendCommand) { c.AmountPerAddress = "-1" }, want: errs.ErrInvalidAmount},
		{name: "empty amount", mod: func(c *BatchSendCommand) { c.AmountPerAddress = "" }, want: errs.ErrInvalidAmount},
		{name: "amount beyond 256 bits", mod: func(c *BatchSendCommand) { c.AmountPerAddress = "1" + strings.Repeat("0", 60) }, want: errs.ErrInvalidAmount},
		{name: "bad gas price", mod: func(c *BatchSendCommand) { c.GasPrice = "abc" }, want: errs.ErrInvalidAmount},
		{name: "zero gas limit", mod: func(c *BatchSendCommand) { c.GasLimit = "0" }, want: errs.ErrInvalidAmount},
		{name: "bad data", mod: func(c *BatchSendCommand) { c.Data = "0xzz" }, want: errs.ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			l := ledger.New()
			cmd := sendCmd(selected)
			tt.mod(cmd)

			_, err := New(p, l).BatchSend(context.Background(), cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, l.Len())
			assert.Empty(t, p.sent)
		})
	}
}

func TestBatchSendContractCreationAndData(t *testing.T) {
	p := newFakeProvider()
	o := New(p, ledger.New())

	cmd := sendCmd(accounts(t, 1))
	cmd.To = ""
	cmd.Data = "6080"
	res, err := o.BatchSend(context.Background(), cmd)
	require.NoError(t, err)

	assert.Nil(t, p.sent[0].To())
	assert.Equal(t, []byte{0x60, 0x80}, p.sent[0].Data())
	assert.Equal(t, "", res.Records[0].To)
	assert.Equal(t, "0x6080", res.Records[0].Data)
}

func TestGasSuggestionApplies(t *testing.T) {
	cmd := sendCmd(nil)
	s := &gas.Suggestion{GasLimit: 30000, GasPriceGwei: "1.5"}
	s.ApplyTo(cmd)
	assert.Equal(t, "30000", cmd.GasLimit)
	assert.Equal(t, "1.5", cmd.GasPrice)
}

func TestDeploy(t *testing.T) {
	p := newFakeProvider()
	l := ledger.New()
	o := New(p, l)

	deployer, err := signer.NewDefaultProvider(ownerKey)
	require.NoError(t, err)
	selected := accounts(t, 2)

	res, err := o.Deploy(context.Background(), &DeployCommand{
		Selected:     selected,
		TokenAddress: tokenAddr,
		Deployer:     deployer,
	})
	require.NoError(t, err)

	want, err := bytecode.Assemble(keystore.Addresses(selected), tokenAddr)
	require.NoError(t, err)

	require.Len(t, p.sent, 1)
	tx := p.sent[0]
	assert.Nil(t, tx.To())
	assert.Equal(t, uint64(120_000), tx.Gas(), "estimate plus 20%")
	assert.Equal(t, p.gasPrice, tx.GasPrice())
	assert.Equal(t, strings.TrimPrefix(want, "0x"), common.Bytes2Hex(tx.Data()))

	assert.Equal(t, ledger.StatusSuccess, res.Record.Status)
	assert.Equal(t, ledger.TypeContract, res.Record.Type)
	assert.Equal(t, "", res.Record.To)
	assert.Equal(t, "0", res.Record.Amount)
	assert.Equal(t, want, res.Record.Data)
	assert.Equal(t, deployer.GetAddress(), res.Record.From)
	assert.NotEqual(t, (common.Address{}).Hex(), res.ContractAddress)
}

func TestDeployWithoutGasBuffer(t *testing.T) {
	deployer, err := signer.NewDefaultProvider(ownerKey)
	require.NoError(t, err)
	zero := uint64(0)
	p := newFakeProvider()

	o := New(p, ledger.New(), WithConfig(config.New(config.Config{GasBufferPct: &zero})))
	_, err = o.Deploy(context.Background(), &DeployCommand{
		Selected: accounts(t, 1),
		Bytecode: "0x6080",
		Deployer: deployer,
	})
	require.NoError(t, err)
	require.Len(t, p.sent, 1)
	assert.Equal(t, uint64(100_000), p.sent[0].Gas())
}

func TestDeployFailures(t *testing.T) {
	deployer, err := signer.NewDefaultProvider(ownerKey)
	require.NoError(t, err)

	t.Run("empty selection", func(t *testing.T) {
		l := ledger.New()
		_, err := New(newFakeProvider(), l).Deploy(context.Background(), &DeployCommand{Deployer: deployer, TokenAddress: tokenAddr})
		assert.ErrorIs(t, err, errs.ErrEmptyAddressSet)
		assert.Equal(t, 0, l.Len())
	})

	t.Run("more addresses than the contract holds", func(t *testing.T) {
		selected := make([]*keystore.Address, bytecode.MaxAddresses+1)
		for i := range selected {
			selected[i] = &keystore.Address{Address: common.BigToAddress(big.NewInt(int64(i + 1))).Hex()}
		}
		p := newFakeProvider()
		l := ledger.New()

		_, err := New(p, l).Deploy(context.Background(), &DeployCommand{
			Selected:     selected,
			TokenAddress: tokenAddr,
			Deployer:     deployer,
		})
		assert.ErrorIs(t, err, errs.ErrTooManyAddresses)
		assert.Equal(t, 0, l.Len())
		assert.Empty(t, p.sent)
	})

	t.Run("estimate error leaves failed record", func(t *testing.T) {
		p := newFakeProvider()
		p.gasErr = errors.New("execution reverted")
		l := ledger.New()

		_, err := New(p, l).Deploy(context.Background(), &DeployCommand{
			Selected:     accounts(t, 1),
			TokenAddress: tokenAddr,
			Deployer:     deployer,
		})
		assert.ErrorIs(t, err, errs.ErrProviderUnavailable)
		require.Equal(t, 1, l.Len())
		rec := l.List()[0]
		assert.Equal(t, ledger.FailedHash, rec.Hash)
		assert.Equal(t, ledger.TypeContract, rec.Type)
	})

	t.Run("reverted", func(t *testing.T) {
		p := newFakeProvider()
		p.revert = true
		l := ledger.New()

		_, err := New(p, l).Deploy(context.Background(), &DeployCommand{
			Selected: accounts(t, 1),
			Bytecode: "0x6080",
			Deployer: deployer,
		})
		assert.ErrorIs(t, err, errs.ErrConfirmationFailure)
		rec := l.List()[0]
		assert.Equal(t, ledger.StatusFailed, rec.Status)
		assert.Equal(t, p.sent[0].Hash().Hex(), rec.Hash)
	})
}

func TestCall(t *testing.T) {
	caller, err := signer.NewDefaultProvider(ownerKey)
	require.NoError(t, err)
	contract := "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	tests := []struct {
		name     string
		kind     calldata.FunctionKind
		contract string
		wantTo   string
		selector string
	}{
		{name: "transfer", kind: calldata.TransferStyle, contract: contract, wantTo: contract, selector: "52850170"},
		{name: "receive to zero address", kind: calldata.ReceiveStyle, wantTo: (common.Address{}).Hex(), selector: "165b478b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			p.estimate = 50_000

			rec, err := New(p, ledger.New()).Call(context.Background(), &CallCommand{
				Kind:            tt.kind,
				ContractAddress: tt.contract,
				Address:         recipient,
				Amount:          "1000",
				Caller:          caller,
			})
			require.NoError(t, err)

			require.Len(t, p.sent, 1)
			tx := p.sent[0]
			assert.Equal(t, tt.wantTo, tx.To().Hex())
			assert.Len(t, tx.Data(), calldata.Length)
			assert.Equal(t, tt.selector, common.Bytes2Hex(tx.Data()[:4]))
			assert.Equal(t, uint64(60_000), tx.Gas())
			assert.Equal(t, int64(0), tx.Value().Int64())

			assert.Equal(t, tt.wantTo, rec.To)
			assert.Equal(t, ledger.StatusSuccess, rec.Status)
			assert.Equal(t, ledger.TypeContract, rec.Type)
			assert.Equal(t, "0", rec.Amount)
		})
	}
}

func TestCallValidation(t *testing.T) {
	caller, err := signer.NewDefaultProvider(ownerKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  CallCommand
		want error
	}{
		{name: "bad contract", cmd: CallCommand{ContractAddress: "0x12", Address: recipient, Caller: caller}, want: errs.ErrInvalidAddress},
		{name: "bad argument", cmd: CallCommand{Address: "nope", Caller: caller}, want: errs.ErrInvalidAddress},
		{name: "negative amount", cmd: CallCommand{Address: recipient, Amount: "-5", Caller: caller}, want: errs.ErrInvalidAmount},
		{name: "unknown kind", cmd: CallCommand{Kind: calldata.FunctionKind(9), Address: recipient, Caller: caller}, want: errs.ErrInvalidSelector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ledger.New()
			_, err := New(newFakeProvider(), l).Call(context.Background(), &tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, l.Len())
		})
	}
}

// minedClient commits a block after every accepted transaction.
type minedClient struct {
	simulated.Client
	backend *simulated.Backend
}

func (m minedClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := m.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	m.backend.Commit()
	return nil
}

func newSimulated(t *testing.T, funded ...string) minedClient {
	t.Helper()
	alloc := types.GenesisAlloc{}
	balance, _ := new(big.Int).SetString("100000000000000000000", 10)
	for _, a := range funded {
		alloc[common.HexToAddress(a)] = types.Account{Balance: balance}
	}
	backend := simulated.NewBackend(alloc)
	t.Cleanup(func() { _ = backend.Close() })
	return minedClient{Client: backend.Client(), backend: backend}
}

func TestSimulatedBatchSend(t *testing.T) {
	selected := accounts(t, 3)
	client := newSimulated(t, keystore.Addresses(selected)...)
	selected[1].Key.Destroy()

	l := ledger.New()
	o := New(client, l, WithPollInterval(10*time.Millisecond), WithReceiptTimeout(10*time.Second))

	res, err := o.BatchSend(context.Background(), sendCmd(selected))
	require.NoError(t, err)
	require.Equal(t, 3, l.Len())

	records := l.List()
	assert.Equal(t, ledger.StatusSuccess, records[0].Status)
	assert.Equal(t, "21000", records[0].GasUsed)
	assert.Equal(t, ledger.FailedHash, records[1].Hash)
	assert.Equal(t, ledger.StatusFailed, records[1].Status)
	assert.Equal(t, ledger.StatusSuccess, records[2].Status)
	assert.Equal(t, 2, res.Succeeded)

	got, err := client.BalanceAt(context.Background(), common.HexToAddress(recipient), nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20_000_000_000_000_000), got)
}

func TestSimulatedDeploy(t *testing.T) {
	deployer, err := signer.NewDefaultProvider(ownerKey)
	require.NoError(t, err)
	client := newSimulated(t, deployer.GetAddress())

	o := New(client, ledger.New(), WithPollInterval(10*time.Millisecond), WithReceiptTimeout(10*time.Second))
	res, err := o.Deploy(context.Background(), &DeployCommand{
		Selected:     accounts(t, 3),
		TokenAddress: tokenAddr,
		Deployer:     deployer,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSuccess, res.Record.Status)

	code, err := client.CodeAt(context.Background(), common.HexToAddress(res.ContractAddress), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}
