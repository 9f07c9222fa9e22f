// Package calldata encodes call data for the two custom entry points of the
// batch transfer contract.
//
// Both functions take the same two static arguments, so the payload is always
// 68 bytes: a 4-byte selector, a left-padded address and a 256-bit amount.
package calldata

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/errs"
)

const (
	// SelectorTransfer pulls tokens from an address into every table entry.
	SelectorTransfer = "0x" + bytecode.SelectorTransfer
	// SelectorReceive pushes tokens from every table entry to an address.
	SelectorReceive = "0x" + bytecode.SelectorReceive
)

// Length is the size of an encoded call.
const Length = 4 + 32 + 32

// FunctionKind selects one of the two contract entry points.
type FunctionKind uint8

const (
	// TransferStyle calls 0x52850170(from, amount).
	TransferStyle FunctionKind = iota
	// ReceiveStyle calls 0x165b478b(to, amount).
	ReceiveStyle
)

func (k FunctionKind) String() string {
	switch k {
	case TransferStyle:
		return "transfer"
	case ReceiveStyle:
		return "receive"
	default:
		return "unknown"
	}
}

// Selector returns the 0x-prefixed selector of the entry point.
func (k FunctionKind) Selector() string {
	switch k {
	case TransferStyle:
		return SelectorTransfer
	case ReceiveStyle:
		return SelectorReceive
	default:
		return ""
	}
}

// ParseFunctionKind converts "transfer" or "receive" to a FunctionKind.
func ParseFunctionKind(s string) (FunctionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transfer":
		return TransferStyle, nil
	case "receive":
		return ReceiveStyle, nil
	default:
		return 0, fmt.Errorf("invalid function kind: %s", s)
	}
}

// Encode returns selector || pad32(addrArg) || pad32(amount).
func Encode(selector, addrArg string, amount *big.Int) ([]byte, error) {
	sel, err := decodeSelector(selector)
	if err != nil {
		return nil, err
	}
	if !bytecode.IsValidAddress(addrArg) {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidAddress, addrArg)
	}
	if amount == nil || amount.Sign() < 0 || amount.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidAmount, amount)
	}

	out := make([]byte, 0, Length)
	out = append(out, sel...)
	out = append(out, common.LeftPadBytes(common.HexToAddress(addrArg).Bytes(), 32)...)
	out = append(out, math.U256Bytes(new(big.Int).Set(amount))...)
	return out, nil
}

// EncodeKind encodes a call to the entry point selected by kind.
func EncodeKind(kind FunctionKind, addrArg string, amount *big.Int) ([]byte, error) {
	if kind.Selector() == "" {
		return nil, fmt.Errorf("%w: unknown function kind %d", errs.ErrInvalidSelector, kind)
	}
	return Encode(kind.Selector(), addrArg, amount)
}

// EncodeHex is Encode with a base-10 (or 0x-prefixed hex) amount string and a
// 0x-prefixed hex result. An empty amount encodes as zero.
func EncodeHex(selector, addrArg, amount string) (string, error) {
	value, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}
	data, err := Encode(selector, addrArg, value)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(data), nil
}

// ParseAmount parses a raw integer amount in base units.
func ParseAmount(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return new(big.Int), nil
	}
	value, ok := math.ParseBig256(amount)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidAmount, amount)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", errs.ErrInvalidAmount, amount)
	}
	return value, nil
}

func decodeSelector(selector string) ([]byte, error) {
	sel, err := hex.DecodeString(strings.TrimPrefix(selector, "0x"))
	if err != nil || len(sel) != 4 {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidSelector, selector)
	}
	return sel, nil
}

// NormalizeData parses free-form transaction data. Surrounding space is
// trimmed and a missing 0x prefix is added; empty input yields no data.
func NormalizeData(data string) ([]byte, string, error) {
	data = strings.TrimSpace(data)
	if data == "" || data == "0x" {
		return nil, "", nil
	}
	if !strings.HasPrefix(data, "0x") {
		data = "0x" + data
	}
	b, err := hexutil.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrInvalidData, err)
	}
	return b, data, nil
}
