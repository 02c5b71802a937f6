// Package catalog maps payment-provider price identifiers to plan
// tiers and billing periods, and plan tiers to word quotas.
//
// The catalog is a static, versioned table. Lookups never fail with an
// error: an unknown price reference simply resolves to nothing, since
// the provider sends many event types that are not price-bearing and
// webhook processing must keep going without it.
//
// Quotas are configuration rather than policy. The defaults live in a
// single table and can be overridden from a YAML file:
//
//	version: "2026-03"
//	quotas:
//	  free: 600
//	  basic: 5000
//	prices:
//	  pri_01k5wq6b65vmkve97p0btjfr5x:
//	    tier: basic
//	    period: monthly
package catalog
