// Package chain talks to the remote ledger through go-ethereum's client
// interfaces.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Provider is the subset of a node client used by the orchestrator and the
// gas estimator. *ethclient.Client and the simulated backend client satisfy
// it.
type Provider interface {
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionSender
	ethereum.TransactionReader
	ethereum.ChainStateReader
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// BalanceReader is satisfied by any Provider.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client is a Provider backed by a JSON-RPC connection.
type Client struct {
	*ethclient.Client
	rpcURL string
}

// Dial connects to rpcURL. HTTP endpoints get an otelhttp-instrumented
// transport so RPC calls show up in traces.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("RPC URL is required")
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}

	rpcClient, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}

	return &Client{
		Client: ethclient.NewClient(rpcClient),
		rpcURL: rpcURL,
	}, nil
}

// URL returns the endpoint the client was dialled with.
func (c *Client) URL() string {
	return c.rpcURL
}

// ReceiptReader is the lookup WaitForReceipt polls.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitForReceipt waits for a transaction to be included in a block and
// returns its receipt. Lookup errors are treated as "not mined yet" until
// timeout expires.
func WaitForReceipt(ctx context.Context, r ReceiptReader, txHash common.Hash, timeout, poll time.Duration) (*types.Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if receipt, err := r.TransactionReceipt(ctx, txHash); err == nil {
		return receipt, nil
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
			receipt, err := r.TransactionReceipt(ctx, txHash)
			if err == nil {
				return receipt, nil
			}
			// Continue if transaction not found yet
		}
	}
}
