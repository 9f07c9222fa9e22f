package keystore

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap/zapcore"

	"github.com/pilacorp/go-batchevm-sdk/signer"
)

const redacted = "REDACTED"

// Secret is a capability handle over a secp256k1 private key. Every textual,
// JSON and log rendering is redacted. The raw key leaves the handle only
// through Store exports, which are audited.
type Secret struct {
	key *secp256k1.PrivateKey
}

// NewSecret generates a random key.
func NewSecret() (*Secret, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return &Secret{key: key}, nil
}

// ParseSecret parses a 32-byte hex private key, with or without 0x.
func ParseSecret(hexKey string) (*Secret, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("invalid private key: expected 64 hex characters, got %d", len(hexKey))
	}
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	defer clear(b)

	// rejects zero and values outside the curve order
	if _, err := crypto.ToECDSA(b); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Secret{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Address derives the account address of the key.
func (s *Secret) Address() common.Address {
	pub := s.key.PubKey().SerializeUncompressed()
	return common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])
}

// Signer returns a transaction signer for the key.
func (s *Secret) Signer() (signer.SignerProvider, error) {
	if s == nil || s.key == nil {
		return nil, fmt.Errorf("secret has been destroyed")
	}
	raw := s.key.Serialize()
	defer clear(raw)

	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return signer.NewProviderFromKey(priv), nil
}

// Destroy zeroes the key material. The handle is unusable afterwards.
func (s *Secret) Destroy() {
	if s == nil || s.key == nil {
		return
	}
	s.key.Zero()
	s.key = nil
}

// reveal returns the 0x-prefixed hex key. Callers must audit the access.
func (s *Secret) reveal() string {
	raw := s.key.Serialize()
	defer clear(raw)
	return "0x" + hex.EncodeToString(raw)
}

func (s *Secret) String() string   { return redacted }
func (s *Secret) GoString() string { return redacted }

// Format keeps every fmt verb redacted.
func (s *Secret) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redacted))
}

func (s *Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s *Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (s *Secret) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("key", redacted)
	return nil
}
