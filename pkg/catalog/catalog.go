package catalog

import (
	"fmt"
	"maps"
)

// PlanPrice is the (tier, billing period) pair a provider price
// identifier resolves to.
type PlanPrice struct {
	Tier   Tier
	Period BillingPeriod
}

// Catalog is an immutable, versioned price and quota table.
// All methods are safe for concurrent use.
type Catalog struct {
	version string
	prices  map[string]PlanPrice
	quotas  map[Tier]int64
}

// DefaultQuotas returns the word allotment per tier for a full billing
// cycle. Kept in one table so quota changes are a single edit.
func DefaultQuotas() map[Tier]int64 {
	return map[Tier]int64{
		TierFree:  600,
		TierBasic: 5000,
		TierPro:   15000,
		TierUltra: 30000,
	}
}

// New builds a catalog from a price table, using the default quotas.
// Use NewWithQuotas when a deployment overrides allotments.
func New(version string, prices map[string]PlanPrice) (*Catalog, error) {
	return NewWithQuotas(version, prices, DefaultQuotas())
}

// NewWithQuotas builds a catalog with explicit quotas. Every price
// mapping must reference a known tier and period, and every known tier
// must carry a positive quota.
func NewWithQuotas(version string, prices map[string]PlanPrice, quotas map[Tier]int64) (*Catalog, error) {
	if len(prices) == 0 {
		return nil, ErrNoPrices
	}
	for ref, pp := range prices {
		if !pp.Tier.Valid() {
			return nil, fmt.Errorf("%w: price %s maps to %q", ErrInvalidTier, ref, pp.Tier)
		}
		if !pp.Period.Valid() {
			return nil, fmt.Errorf("%w: price %s maps to %q", ErrInvalidPeriod, ref, pp.Period)
		}
	}
	for tier := range tierRanks {
		if quotas[tier] <= 0 {
			return nil, fmt.Errorf("%w: tier %s", ErrInvalidQuota, tier)
		}
	}

	return &Catalog{
		version: version,
		prices:  maps.Clone(prices),
		quotas:  maps.Clone(quotas),
	}, nil
}

// Version returns the catalog table version.
func (c *Catalog) Version() string {
	return c.version
}

// Resolve maps a provider price reference to its plan. The second
// return value is false for unknown references; callers apply provider
// status and linkage fields without touching plan or period in that
// case instead of failing the whole event.
func (c *Catalog) Resolve(priceRef string) (PlanPrice, bool) {
	pp, ok := c.prices[priceRef]
	return pp, ok
}

// QuotaFor returns the word allotment for a full cycle of the tier.
// Unknown tiers get zero.
func (c *Catalog) QuotaFor(tier Tier) int64 {
	return c.quotas[tier]
}
