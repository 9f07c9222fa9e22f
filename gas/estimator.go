// Package gas suggests gas parameters for a transfer without touching any
// caller state.
package gas

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/errs"
	"github.com/pilacorp/go-batchevm-sdk/units"
)

// Provider is the node access the estimator needs.
type Provider interface {
	ethereum.GasEstimator
	ethereum.GasPricer
}

// Request describes the transaction to estimate. To may be empty for a
// contract creation; Amount is in ether and Data is optional hex.
type Request struct {
	From   string
	To     string
	Amount string
	Data   string
}

// Suggestion is an advisory gas setting.
type Suggestion struct {
	GasLimit     uint64
	GasPriceGwei string
	GasPriceWei  *big.Int
}

// Target is anything that carries manual gas settings.
type Target interface {
	SetGas(limit, priceGwei string)
}

// ApplyTo copies the suggestion into t. Estimation never does this on its own.
func (s *Suggestion) ApplyTo(t Target) {
	if s == nil || t == nil {
		return
	}
	t.SetGas(strconv.FormatUint(s.GasLimit, 10), s.GasPriceGwei)
}

// Estimator queries a provider for gas suggestions.
type Estimator struct {
	provider Provider
	logger   *zap.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the estimator logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Estimator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEstimator returns an Estimator backed by p.
func NewEstimator(p Provider, opts ...Option) *Estimator {
	e := &Estimator{provider: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate asks the provider for a gas limit and the current gas price. On
// any provider error it returns no suggestion; defaults are never filled in.
func (e *Estimator) Estimate(ctx context.Context, req Request) (*Suggestion, error) {
	msg, err := buildCallMsg(req)
	if err != nil {
		return nil, err
	}

	limit, err := e.provider.EstimateGas(ctx, msg)
	if err != nil {
		e.logger.Warn("gas estimation failed", zap.String("from", req.From), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to estimate gas: %v", errs.ErrProviderUnavailable, err)
	}

	price, err := e.provider.SuggestGasPrice(ctx)
	if err != nil {
		e.logger.Warn("gas price lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get gas price: %v", errs.ErrProviderUnavailable, err)
	}

	s := &Suggestion{
		GasLimit:     limit,
		GasPriceGwei: units.FormatGwei(price),
		GasPriceWei:  price,
	}
	e.logger.Debug("gas estimated", zap.Uint64("gasLimit", s.GasLimit), zap.String("gasPriceGwei", s.GasPriceGwei))
	return s, nil
}

func buildCallMsg(req Request) (ethereum.CallMsg, error) {
	var msg ethereum.CallMsg

	if !bytecode.IsValidAddress(req.From) {
		return msg, fmt.Errorf("%w: from %q", errs.ErrInvalidAddress, req.From)
	}
	msg.From = common.HexToAddress(req.From)

	if to := strings.TrimSpace(req.To); to != "" {
		if !bytecode.IsValidAddress(to) {
			return msg, fmt.Errorf("%w: to %q", errs.ErrInvalidAddress, to)
		}
		addr := common.HexToAddress(to)
		msg.To = &addr
	}

	value, err := units.ParseEther(req.Amount)
	if err != nil {
		return msg, err
	}
	msg.Value = value

	data, _, err := calldata.NormalizeData(req.Data)
	if err != nil {
		return msg, err
	}
	msg.Data = data
	return msg, nil
}

// WithBuffer adds pct percent to limit.
func WithBuffer(limit, pct uint64) uint64 {
	if pct == 0 {
		return limit
	}
	return limit + limit*pct/100
}
