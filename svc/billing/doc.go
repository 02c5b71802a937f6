// Package billing reconciles the subscription ledger against the
// payment provider and serves self-service plan changes.
//
// Both webhook events and client plan-change requests route plan and
// period mutations through the transition rules; provider-side facts
// (status, linkage refs, cycle renewal timestamp) are applied to the
// ledger unconditionally because they describe what already happened
// on the provider. A provider event whose plan change the rules deny
// is logged as an anomaly and acknowledged, never applied and never
// surfaced as an error the provider would retry forever.
package billing
