// Package bytecode assembles the deployment payload of the batch transfer
// contract: a constructor, a fixed runtime program and an appended table of
// 20-byte addresses.
//
// Layout of the returned hex string:
//
//	0x || constructor || runtime || fe || dataSegment
//
// dataSegment is the concatenation of the lowercase address bodies in input
// order. Both the data size and the runtime size are embedded as 2-byte
// big-endian immediates, so the address count must stay within MaxAddresses.
package bytecode

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pilacorp/go-batchevm-sdk/errs"
)

// addressBytes is the size of one table entry.
const addressBytes = 20

// maxImmediate is the largest value a 2-byte size immediate can hold.
const maxImmediate = 0xFFFF

// runtimeFixedBytes is the runtime template size once its placeholders are
// filled: 2 bytes of data size and the 20-byte token address.
var runtimeFixedBytes = (len(RuntimeTemplateV1)-len(placeholderDataSize)-len(placeholderToken))/2 + 2 + addressBytes

// MaxAddresses is the largest address count whose runtime size (code plus
// table) still fits the 2-byte immediate of the constructor.
var MaxAddresses = (maxImmediate - runtimeFixedBytes) / addressBytes

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
// Checksums are not verified.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// FormatAddresses drops invalid entries and lowercases the rest.
func FormatAddresses(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if IsValidAddress(addr) {
			out = append(out, strings.ToLower(addr))
		}
	}
	return out
}

// Assemble builds the deployment bytecode embedding addresses, wired to the
// ERC-20 token at tokenAddress.
//
// Invalid addresses are skipped. If none is left, errs.ErrEmptyAddressSet is
// returned. The result is deterministic for identical inputs. Assemble does
// not bound the list; callers check it with CheckCount first.
func Assemble(addresses []string, tokenAddress string) (string, error) {
	valid := FormatAddresses(addresses)
	if len(valid) == 0 {
		return "", errs.ErrEmptyAddressSet
	}
	if !IsValidAddress(tokenAddress) {
		return "", fmt.Errorf("%w: token %q", errs.ErrInvalidAddress, tokenAddress)
	}

	var data strings.Builder
	data.Grow(len(valid) * addressBytes * 2)
	for _, addr := range valid {
		data.WriteString(addr[2:])
	}
	dataSegment := data.String()

	runtimeCode := strings.NewReplacer(
		placeholderDataSize, sizeHex(len(dataSegment)/2),
		placeholderToken, strings.ToLower(tokenAddress[2:]),
	).Replace(RuntimeTemplateV1)

	runtimeSize := (len(runtimeCode) + len(dataSegment)) / 2
	constructorCode := strings.Replace(ConstructorTemplateV1, placeholderRuntime, sizeHex(runtimeSize), 1)

	var out strings.Builder
	out.Grow(2 + len(constructorCode) + len(runtimeCode) + len(separator) + len(dataSegment))
	out.WriteString("0x")
	out.WriteString(constructorCode)
	out.WriteString(runtimeCode)
	out.WriteString(separator)
	out.WriteString(dataSegment)
	return out.String(), nil
}

// Size returns the byte length of a hex bytecode string, with or without the
// 0x prefix.
func Size(bytecode string) int {
	return len(strings.TrimPrefix(bytecode, "0x")) / 2
}

// DataSegment returns the trailing address table of an assembled bytecode
// holding count addresses.
func DataSegment(bytecode string, count int) (string, error) {
	n := count * addressBytes * 2
	if count <= 0 || n > len(bytecode)-2 {
		return "", fmt.Errorf("bytecode too short for %d addresses", count)
	}
	return bytecode[len(bytecode)-n:], nil
}

// CheckCount reports errs.ErrTooManyAddresses when n addresses do not fit the
// 2-byte size immediates of the contract.
func CheckCount(n int) error {
	if n > MaxAddresses {
		return fmt.Errorf("%w: %d addresses, the contract holds at most %d", errs.ErrTooManyAddresses, n, MaxAddresses)
	}
	return nil
}

// sizeHex renders n as at least 4 lowercase hex digits. Values above 0xFFFF
// produce more digits; see CheckCount.
func sizeHex(n int) string {
	return fmt.Sprintf("%04x", n)
}
