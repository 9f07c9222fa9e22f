// Package keystore holds the working set of operator-controlled accounts.
//
// Keys are generated or imported into a Store and wrapped in Secret handles;
// the store hands selected accounts to the batch orchestrator and performs
// the audited JSON export/import of key material.
package keystore

import (
	"go.uber.org/zap/zapcore"
)

// Address is one managed account.
type Address struct {
	// Address is the checksummed account address derived from Key.
	Address string
	// Key is the private key handle.
	Key *Secret
	// Balance is the last known balance in ether, empty if never fetched.
	Balance string
	// IsSelected marks the account for the next batch operation.
	IsSelected bool
}

func newAddress(key *Secret) *Address {
	return &Address{Address: key.Address().Hex(), Key: key}
}

// MarshalLogObject logs the public fields only.
func (a *Address) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("address", a.Address)
	enc.AddString("balance", a.Balance)
	enc.AddBool("selected", a.IsSelected)
	return nil
}

// Addresses returns the address strings of list in order.
func Addresses(list []*Address) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Address
	}
	return out
}
