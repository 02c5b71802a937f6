package ledger

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store guarded by a single mutex, which
// gives every mutation the row-level atomicity the interface demands.
// Intended for tests and single-process development setups.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
	byEmail map[string]uuid.UUID
	debits  map[string]struct{} // seen debit idempotency keys (job ids)
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]*Entry),
		byEmail: make(map[string]uuid.UUID),
		debits:  make(map[string]struct{}),
	}
}

func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return copyEntry(entry), nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return copyEntry(s.entries[userID]), nil
}

func (s *MemoryStore) Create(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.UserID]; ok {
		return ErrEntryExists
	}
	if _, ok := s.byEmail[normalizeEmail(entry.Email)]; ok && entry.Email != "" {
		return ErrEntryExists
	}

	now := time.Now().UTC()
	stored := copyEntry(entry)
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.entries[stored.UserID] = stored
	if stored.Email != "" {
		s.byEmail[normalizeEmail(stored.Email)] = stored.UserID
	}
	return nil
}

func (s *MemoryStore) ApplyPatch(ctx context.Context, userID uuid.UUID, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return ErrEntryNotFound
	}

	entry.Plan = patch.Plan
	entry.BillingPeriod = patch.BillingPeriod
	entry.WordBalance = patch.WordBalance
	entry.CycleStartedAt = patch.CycleStartedAt
	entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpsertProvider(ctx context.Context, email string, update ProviderUpdate) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	userID, ok := s.byEmail[key]
	if !ok {
		entry := &Entry{
			UserID:    uuid.New(),
			Email:     key,
			Plan:      "free",
			CreatedAt: time.Now().UTC(),
		}
		s.entries[entry.UserID] = entry
		s.byEmail[key] = entry.UserID
		userID = entry.UserID
	}

	entry := s.entries[userID]
	if update.Status != "" {
		entry.Status = update.Status
	}
	if update.PriceRef != "" {
		entry.ProviderPriceRef = update.PriceRef
	}
	if update.CustomerRef != "" {
		entry.ProviderCustomerRef = update.CustomerRef
	}
	if update.SubscriptionRef != "" {
		entry.ProviderSubscriptionRef = update.SubscriptionRef
	}
	if update.CycleStartedAt != nil {
		entry.CycleStartedAt = *update.CycleStartedAt
	}
	if update.CycleRenewsAt != nil {
		entry.CycleRenewsAt = *update.CycleRenewsAt
	}
	entry.UpdatedAt = time.Now().UTC()

	return copyEntry(entry), nil
}

func (s *MemoryStore) Debit(ctx context.Context, userID uuid.UUID, jobID string, words int64) (int64, error) {
	if words < 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return 0, ErrEntryNotFound
	}

	if _, seen := s.debits[jobID]; seen {
		return entry.WordBalance, ErrDoubleDebit
	}
	s.debits[jobID] = struct{}{}

	entry.WordBalance = max(entry.WordBalance-words, 0)
	entry.UpdatedAt = time.Now().UTC()
	return entry.WordBalance, nil
}

func (s *MemoryStore) Credit(ctx context.Context, userID uuid.UUID, words int64) (int64, error) {
	if words < 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return 0, ErrEntryNotFound
	}

	entry.WordBalance += words
	entry.UpdatedAt = time.Now().UTC()
	return entry.WordBalance, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyEntry(e *Entry) *Entry {
	clone := *e
	return &clone
}
