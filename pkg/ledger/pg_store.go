package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redraftlabs/redraft/pkg/pg"
)

// PGStore is the Postgres-backed Store. Every mutation is a single
// statement (or a short transaction for debits) so concurrent events
// for the same subscriber serialize on the database's row lock.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const entryColumns = `user_id, email, plan, billing_period, word_balance,
	cycle_started_at, cycle_renews_at, auto_renew, status,
	provider_customer_ref, provider_subscription_ref, provider_price_ref,
	created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.UserID, &e.Email, &e.Plan, &e.BillingPeriod, &e.WordBalance,
		&e.CycleStartedAt, &e.CycleRenewsAt, &e.AutoRenew, &e.Status,
		&e.ProviderCustomerRef, &e.ProviderSubscriptionRef, &e.ProviderPriceRef,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("ledger: scan entry: %w", err)
	}
	return &e, nil
}

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1`
	return scanEntry(s.pool.QueryRow(ctx, query, userID))
}

func (s *PGStore) GetByEmail(ctx context.Context, email string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE email = lower($1)`
	return scanEntry(s.pool.QueryRow(ctx, query, email))
}

func (s *PGStore) Create(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO ledger_entries (
			user_id, email, plan, billing_period, word_balance,
			cycle_started_at, cycle_renews_at, auto_renew, status,
			provider_customer_ref, provider_subscription_ref, provider_price_ref
		) VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		entry.UserID, entry.Email, entry.Plan, entry.BillingPeriod, entry.WordBalance,
		entry.CycleStartedAt, entry.CycleRenewsAt, entry.AutoRenew, entry.Status,
		entry.ProviderCustomerRef, entry.ProviderSubscriptionRef, entry.ProviderPriceRef,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("ledger: create entry: %w", err)
	}
	return nil
}

func (s *PGStore) ApplyPatch(ctx context.Context, userID uuid.UUID, patch Patch) error {
	query := `
		UPDATE ledger_entries
		SET plan = $2, billing_period = $3, word_balance = $4,
			cycle_started_at = $5, updated_at = now()
		WHERE user_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		userID, patch.Plan, patch.BillingPeriod, patch.WordBalance, patch.CycleStartedAt)
	if err != nil {
		return fmt.Errorf("ledger: apply patch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *PGStore) UpsertProvider(ctx context.Context, email string, update ProviderUpdate) (*Entry, error) {
	// NULLIF/COALESCE keeps absent event fields from clobbering stored
	// values; plan and billing_period are deliberately not in the SET
	// list since those only change through a transition patch.
	query := `
		INSERT INTO ledger_entries (
			user_id, email, plan, status,
			provider_customer_ref, provider_subscription_ref, provider_price_ref,
			cycle_started_at, cycle_renews_at
		) VALUES ($1, lower($2), 'free', $3, $4, $5, $6,
			COALESCE($7, '0001-01-01'::timestamptz), COALESCE($8, '0001-01-01'::timestamptz))
		ON CONFLICT (email) DO UPDATE SET
			status = COALESCE(NULLIF($3, ''), ledger_entries.status),
			provider_customer_ref = COALESCE(NULLIF($4, ''), ledger_entries.provider_customer_ref),
			provider_subscription_ref = COALESCE(NULLIF($5, ''), ledger_entries.provider_subscription_ref),
			provider_price_ref = COALESCE(NULLIF($6, ''), ledger_entries.provider_price_ref),
			cycle_started_at = COALESCE($7, ledger_entries.cycle_started_at),
			cycle_renews_at = COALESCE($8, ledger_entries.cycle_renews_at),
			updated_at = now()
		RETURNING ` + entryColumns

	row := s.pool.QueryRow(ctx, query,
		uuid.New(), email, update.Status,
		update.CustomerRef, update.SubscriptionRef, update.PriceRef,
		update.CycleStartedAt, update.CycleRenewsAt,
	)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("ledger: upsert provider fields: %w", err)
	}
	return entry, nil
}

func (s *PGStore) Debit(ctx context.Context, userID uuid.UUID, jobID string, words int64) (int64, error) {
	if words < 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin debit: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// The idempotency row and the balance update commit together, so a
	// retried completion callback can never debit twice.
	tag, err := tx.Exec(ctx,
		`INSERT INTO word_debits (job_id, user_id, words) VALUES ($1, $2, $3)
		 ON CONFLICT (job_id) DO NOTHING`,
		jobID, userID, words)
	if err != nil {
		return 0, fmt.Errorf("ledger: record debit: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var balance int64
		err := tx.QueryRow(ctx,
			`SELECT word_balance FROM ledger_entries WHERE user_id = $1`, userID).Scan(&balance)
		if err != nil {
			if pg.IsNotFoundError(err) {
				return 0, ErrEntryNotFound
			}
			return 0, fmt.Errorf("ledger: read balance: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("ledger: commit debit: %w", err)
		}
		return balance, ErrDoubleDebit
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE ledger_entries
		 SET word_balance = GREATEST(word_balance - $2, 0), updated_at = now()
		 WHERE user_id = $1
		 RETURNING word_balance`,
		userID, words).Scan(&balance)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return 0, ErrEntryNotFound
		}
		return 0, fmt.Errorf("ledger: debit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, ErrWriteConflict
		}
		return 0, fmt.Errorf("ledger: commit debit: %w", err)
	}
	return balance, nil
}

func (s *PGStore) Credit(ctx context.Context, userID uuid.UUID, words int64) (int64, error) {
	if words < 0 {
		return 0, ErrInvalidAmount
	}

	var balance int64
	err := s.pool.QueryRow(ctx,
		`UPDATE ledger_entries
		 SET word_balance = word_balance + $2, updated_at = now()
		 WHERE user_id = $1
		 RETURNING word_balance`,
		userID, words).Scan(&balance)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return 0, ErrEntryNotFound
		}
		return 0, fmt.Errorf("ledger: credit balance: %w", err)
	}
	return balance, nil
}
