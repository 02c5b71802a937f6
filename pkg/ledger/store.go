package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store defines ledger persistence. Implementations must make every
// mutation a single atomic operation against the entry row; events for
// the same subscriber arrive concurrently and must not lose updates.
type Store interface {
	// Get retrieves an entry by subscriber identity.
	// Returns ErrEntryNotFound if no entry exists.
	Get(ctx context.Context, userID uuid.UUID) (*Entry, error)

	// GetByEmail retrieves an entry by the provider linkage email.
	GetByEmail(ctx context.Context, email string) (*Entry, error)

	// Create inserts a new entry. Creation is idempotent per identity:
	// a second create for the same identity returns ErrEntryExists and
	// leaves the existing row untouched.
	Create(ctx context.Context, entry *Entry) error

	// ApplyPatch writes a transition patch (plan, period, balance,
	// cycle start) as one atomic update.
	ApplyPatch(ctx context.Context, userID uuid.UUID, patch Patch) error

	// UpsertProvider applies provider-side fact keyed by email,
	// creating the entry when missing. Only non-zero fields of the
	// update are written; plan and billing period are never touched.
	UpsertProvider(ctx context.Context, email string, update ProviderUpdate) (*Entry, error)

	// Debit subtracts words from the balance, clamping at zero, as one
	// atomic read-modify-write. jobID is the idempotency key: a repeat
	// returns the unchanged balance with ErrDoubleDebit.
	Debit(ctx context.Context, userID uuid.UUID, jobID string, words int64) (int64, error)

	// Credit adds words to the balance atomically.
	Credit(ctx context.Context, userID uuid.UUID, words int64) (int64, error)
}
