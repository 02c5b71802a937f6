package ledger

import "errors"

var (
	ErrEntryNotFound = errors.New("ledger: entry not found")
	ErrEntryExists   = errors.New("ledger: entry already exists")

	// ErrDoubleDebit reports that the debit's idempotency key was seen
	// before. The returned balance is current and unchanged; callers
	// treat this as success.
	ErrDoubleDebit = errors.New("ledger: debit already applied for job")

	// ErrWriteConflict reports a lost atomicity race. Safe to retry.
	ErrWriteConflict = errors.New("ledger: concurrent write conflict")

	ErrInvalidAmount = errors.New("ledger: amount must be non-negative")
)
