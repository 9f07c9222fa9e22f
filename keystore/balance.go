package keystore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/pilacorp/go-batchevm-sdk/chain"
	"github.com/pilacorp/go-batchevm-sdk/units"
)

// RefreshBalances fetches the latest balance of every account. A failed
// lookup records "0" for that account and does not stop the refresh.
func (s *Store) RefreshBalances(ctx context.Context, r chain.BalanceReader) {
	list := s.List()
	balances := make([]string, len(list))
	for i, a := range list {
		wei, err := r.BalanceAt(ctx, common.HexToAddress(a.Address), nil)
		if err != nil {
			s.logger.Warn("failed to fetch balance", zap.String("address", a.Address), zap.Error(err))
			balances[i] = "0"
			continue
		}
		balances[i] = units.FormatEther(wei)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range list {
		a.Balance = balances[i]
	}
}
