package market

import "errors"

// Failure taxonomy for ledger interactions. Callers branch with errors.Is;
// everything else wraps ErrLedgerCallFailed.
var (
	// ErrLedgerUnavailable means no session is active. Recoverable by
	// connecting a signer; reads degrade to unavailable rather than panic.
	ErrLedgerUnavailable = errors.New("ledger unavailable: no active session")

	// ErrLedgerCallFailed is an RPC or network failure. Retry is left to
	// the caller; projection caches keep their prior snapshot.
	ErrLedgerCallFailed = errors.New("ledger call failed")

	// ErrNotFound is a normal outcome of a point lookup, not a fault.
	ErrNotFound = errors.New("listing not found")

	// ErrSigningRejected means the signer declined the transaction. A
	// benign cancellation, not an error banner.
	ErrSigningRejected = errors.New("signing rejected")

	// ErrInsufficientFunds means the balance check failed at broadcast.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientSupply means a purchase exceeds the listing's unsold
	// energy, either per the local optimistic check or the ledger's final
	// word.
	ErrInsufficientSupply = errors.New("insufficient supply")
)
