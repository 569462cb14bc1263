package model

import "errors"

// Trade failure taxonomy. All business-rule failures are detected before any
// write; handlers map these to HTTP statuses and short machine-checkable
// reasons. Anything not in this list is treated as a storage/internal failure.
var (
	// ErrInvalidInput is returned for non-positive quantity or price.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownAsset is returned when a symbol does not resolve.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrInsufficientBalance is returned when a buy would overdraw the
	// account. No partial fills.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientHoldings is returned when a sell exceeds the net held
	// quantity. No short selling.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrCostBasisInconsistency means the ledger said enough was held but
	// the remaining buy lots did not cover the sale. This is a bug, not a
	// user error; the operation aborts with no partial writes.
	ErrCostBasisInconsistency = errors.New("cost basis inconsistency")

	// ErrStorage wraps failures of the underlying store after rollback.
	ErrStorage = errors.New("storage failure")

	// ErrAccountNotFound is returned when the user has no account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned on duplicate account creation.
	ErrAccountExists = errors.New("account already exists")

	// ErrAssetExists is returned on duplicate asset creation.
	ErrAssetExists = errors.New("asset already exists")

	// ErrPositionNotFound is returned when no open position exists for a
	// (user, asset) pair.
	ErrPositionNotFound = errors.New("position not found")
)
