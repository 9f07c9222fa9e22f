// Package errs holds the error taxonomy shared by the batch EVM packages.
//
// Every error returned across package boundaries wraps exactly one of these
// sentinels, so callers can branch with errors.Is without parsing messages.
package errs

import "errors"

var (
	// ErrInvalidAddress reports a value that is not a 0x-prefixed 20-byte hex address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidAmount reports a negative, non-numeric or out-of-range amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidData reports custom transaction data that is not valid hex.
	ErrInvalidData = errors.New("invalid hex data")
	// ErrInvalidSelector reports a function selector that is not exactly 4 bytes.
	ErrInvalidSelector = errors.New("invalid function selector")
	// ErrEmptyAddressSet reports that no valid address is left to operate on.
	ErrEmptyAddressSet = errors.New("at least one valid address is required")
	// ErrTooManyAddresses reports an address set larger than the batch contract can embed.
	ErrTooManyAddresses = errors.New("too many addresses")
	// ErrSigningFailure reports that a transaction could not be signed.
	ErrSigningFailure = errors.New("signing failure")
	// ErrSubmissionFailure reports that a signed transaction was not accepted by the node.
	ErrSubmissionFailure = errors.New("submission failure")
	// ErrConfirmationFailure reports a submitted transaction that was reverted or never mined.
	ErrConfirmationFailure = errors.New("confirmation failure")
	// ErrProviderUnavailable reports that the remote provider could not answer.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNoValidEntries reports an import that yielded no usable address.
	ErrNoValidEntries = errors.New("no valid address and private key found")
)
