package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/redraftlabs/redraft/pkg/catalog"
)

// Entry is the persisted billing record for one subscriber.
type Entry struct {
	UserID        uuid.UUID // primary key, stable and never reused
	Email         string    // provider linkage key for webhook upserts
	Plan          catalog.Tier
	BillingPeriod catalog.BillingPeriod
	WordBalance   int64 // never negative; reset on renewal

	CycleStartedAt time.Time
	CycleRenewsAt  time.Time
	AutoRenew      bool

	// Provider-side fact, applied unconditionally from webhook events.
	Status                  string
	ProviderCustomerRef     string
	ProviderSubscriptionRef string
	ProviderPriceRef        string // last price applied, detects stale events

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CycleActive reports whether the current billing cycle is still
// running at the given instant. Entries that never had a paid cycle
// have a zero CycleRenewsAt and are never considered active.
func (e *Entry) CycleActive(now time.Time) bool {
	return !e.CycleRenewsAt.IsZero() && now.Before(e.CycleRenewsAt)
}

// HasPaidSubscription reports whether the entry is linked to a
// provider-side subscription.
func (e *Entry) HasPaidSubscription() bool {
	return e.ProviderSubscriptionRef != ""
}

// Patch is the Transition Authority's output: the plan, period, and
// cycle fields to apply as one atomic write when a transition is
// allowed. Balance resets happen only through a Patch.
type Patch struct {
	Plan           catalog.Tier
	BillingPeriod  catalog.BillingPeriod
	WordBalance    int64
	CycleStartedAt time.Time
}

// ProviderUpdate carries provider-side fact from a webhook event.
// Zero-valued fields were absent from the event and stay untouched.
type ProviderUpdate struct {
	Status          string
	PriceRef        string
	CustomerRef     string
	SubscriptionRef string
	CycleStartedAt  *time.Time
	CycleRenewsAt   *time.Time
}
