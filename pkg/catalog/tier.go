package catalog

// Tier is a subscription plan tier, totally ordered by entitlement
// rank: free < basic < pro < ultra.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
	TierUltra Tier = "ultra"
)

var tierRanks = map[Tier]int{
	TierFree:  0,
	TierBasic: 1,
	TierPro:   2,
	TierUltra: 3,
}

// Rank returns the tier's position in the entitlement order.
// Unknown tiers rank below free so they never pass an upgrade check.
func (t Tier) Rank() int {
	if r, ok := tierRanks[t]; ok {
		return r
	}
	return -1
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// BillingPeriod is the billing cycle length for a paid plan.
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodAnnual  BillingPeriod = "annual"
)

// Valid reports whether p is a known billing period.
func (p BillingPeriod) Valid() bool {
	return p == PeriodMonthly || p == PeriodAnnual
}
