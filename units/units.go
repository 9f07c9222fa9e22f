// Package units converts between human readable ether/gwei decimals and wei.
package units

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/pilacorp/go-batchevm-sdk/errs"
)

const (
	// EtherDecimals is the number of decimals between ether and wei.
	EtherDecimals = 18
	// GweiDecimals is the number of decimals between gwei and wei.
	GweiDecimals = 9

	maxBits = 256
)

// ParseEther converts an ether decimal string (e.g. "0.01") to wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, EtherDecimals)
}

// ParseGwei converts a gwei decimal string (e.g. "20") to wei.
func ParseGwei(amount string) (*big.Int, error) {
	return ParseUnits(amount, GweiDecimals)
}

// ParseUnits converts a non-negative decimal string to an integer scaled by
// 10^decimals. More fractional digits than decimals is an error, as is any
// negative value.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty value", errs.ErrInvalidAmount)
	}
	if decimals < 0 || decimals > sdkmath.LegacyPrecision {
		return nil, fmt.Errorf("%w: unsupported decimals %d", errs.ErrInvalidAmount, decimals)
	}
	if i := strings.IndexByte(amount, '.'); i >= 0 && len(amount)-i-1 > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", errs.ErrInvalidAmount, amount, decimals)
	}

	dec, err := sdkmath.LegacyNewDecFromStr(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errs.ErrInvalidAmount, amount, err)
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", errs.ErrInvalidAmount, amount)
	}

	// dec holds amount scaled by 10^LegacyPrecision; dividing down is exact
	// because the fraction has at most decimals digits.
	wei := dec.BigInt()
	if shift := sdkmath.LegacyPrecision - decimals; shift > 0 {
		wei.Quo(wei, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	}
	if wei.BitLen() > maxBits {
		return nil, fmt.Errorf("%w: %q exceeds 256 bits", errs.ErrInvalidAmount, amount)
	}
	return wei, nil
}

// FormatEther renders wei as an ether decimal string.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

// FormatGwei renders wei as a gwei decimal string.
func FormatGwei(wei *big.Int) string {
	return FormatUnits(wei, GweiDecimals)
}

// FormatUnits renders value / 10^decimals with trailing zeros trimmed, keeping
// at least one fractional digit ("20.0", "0.000000001").
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "0.0"
	}
	s := sdkmath.LegacyNewDecFromBigIntWithPrec(value, int64(decimals)).String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		if strings.HasSuffix(s, ".") {
			s += "0"
		}
	}
	return s
}

// MulString multiplies an ether decimal by n and renders the product, used for
// informational batch totals.
func MulString(amount string, n int) (string, error) {
	wei, err := ParseEther(amount)
	if err != nil {
		return "", err
	}
	return FormatEther(new(big.Int).Mul(wei, big.NewInt(int64(n)))), nil
}
