// Package signer abstracts the key that authorizes a transaction.
//
// A SignerProvider only ever sees 32-byte digests, so the key may live in
// process memory (DefaultProvider), in an HSM or behind a remote API.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerProvider is the interface for the signer provider.
type SignerProvider interface {
	Sign(payload []byte) ([]byte, error)
	GetAddress() string
}

// DefaultProvider is the default signer provider.
type DefaultProvider struct {
	priv *ecdsa.PrivateKey
}

// NewDefaultProvider creates a new default signer provider.
//
// privHex is the private key in hex format, with or without 0x.
func NewDefaultProvider(privHex string) (SignerProvider, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &DefaultProvider{priv: priv}, nil
}

// NewProviderFromKey wraps an already parsed key.
func NewProviderFromKey(priv *ecdsa.PrivateKey) SignerProvider {
	return &DefaultProvider{priv: priv}
}

// Sign signs the 32-byte hashPayload and returns a 65-byte [R || S || V]
// signature with V in {0, 1}.
func (s *DefaultProvider) Sign(hashPayload []byte) ([]byte, error) {
	signature, err := crypto.Sign(hashPayload, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(signature))
	}

	return signature, nil
}

// GetAddress returns the checksummed address of the signer.
func (s *DefaultProvider) GetAddress() string {
	return crypto.PubkeyToAddress(s.priv.PublicKey).Hex()
}

// TxSignerFn adapts a SignerProvider to go-ethereum's signer callback. The
// transaction is hashed with the latest signer for chainID, so legacy and
// typed transactions are both replay protected.
func TxSignerFn(chainID *big.Int, s SignerProvider) func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
	return func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		txSigner := types.LatestSignerForChainID(chainID)
		h := txSigner.Hash(tx)
		sig, err := s.Sign(h.Bytes())
		if err != nil {
			return nil, err
		}

		return tx.WithSignature(txSigner, sig)
	}
}

// SignTx signs tx for chainID using s.
func SignTx(chainID *big.Int, s SignerProvider, tx *types.Transaction) (*types.Transaction, error) {
	return TxSignerFn(chainID, s)(common.HexToAddress(s.GetAddress()), tx)
}
