package transition

import (
	"time"

	"github.com/redraftlabs/redraft/pkg/catalog"
	"github.com/redraftlabs/redraft/pkg/ledger"
)

// Change is a requested plan/period transition, however it was
// initiated.
type Change struct {
	Plan          catalog.Tier
	BillingPeriod catalog.BillingPeriod
}

// QuotaFunc resolves a tier's full-cycle word allotment, normally
// (*catalog.Catalog).QuotaFor.
type QuotaFunc func(catalog.Tier) int64

// Decision is the outcome of Decide. When Allowed, Patch holds the
// ledger fields to apply; otherwise Reason says why and RetryAt is the
// earliest instant the same request becomes legal (for user-facing
// errors).
type Decision struct {
	Allowed bool
	Patch   ledger.Patch
	Reason  error // one of the package sentinel errors when denied
	RetryAt time.Time
}

// Decide evaluates the transition rules in order:
//
//  1. A subscriber on the free plan may move to any plan and period
//     (first paid subscription, free choice of period).
//  2. A requested plan below the current rank is denied; downgrades
//     are only accepted from explicit provider cancellation events.
//  3. A period change before the current cycle's renewal boundary is
//     denied; period switches take effect at renewal.
//  4. Otherwise the change is allowed with a patch that sets the plan
//     and period, resets the balance to the new plan's full quota, and
//     starts a new cycle at now.
func Decide(current *ledger.Entry, req Change, quota QuotaFunc, now time.Time) Decision {
	if !req.Plan.Valid() || !req.BillingPeriod.Valid() {
		return Decision{Reason: ErrInvalidChange}
	}

	if current.Plan != catalog.TierFree {
		if req.Plan.Rank() < current.Plan.Rank() {
			return Decision{Reason: ErrDowngradeBlocked, RetryAt: current.CycleRenewsAt}
		}
		if req.BillingPeriod != current.BillingPeriod && current.CycleActive(now) {
			return Decision{Reason: ErrPeriodLocked, RetryAt: current.CycleRenewsAt}
		}
	}

	return Decision{
		Allowed: true,
		Patch: ledger.Patch{
			Plan:           req.Plan,
			BillingPeriod:  req.BillingPeriod,
			WordBalance:    quota(req.Plan),
			CycleStartedAt: now,
		},
	}
}
