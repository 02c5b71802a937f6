// Package transition is the single source of truth for whether a plan
// or billing-period change is legal. The same decision function runs
// for self-service change requests and for webhook reconciliation, so
// the two paths can never disagree about the rules.
//
// Decide is pure: given the current ledger entry, the requested
// change, a quota lookup, and an explicit clock, it returns the same
// decision every time. Side effects (writing the patch, logging the
// anomaly) belong to the caller.
package transition
