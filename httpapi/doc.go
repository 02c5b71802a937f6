// Package httpapi exposes the billing and rewrite services over HTTP.
//
// The surrounding product handles authentication; this API trusts the
// X-User-ID header the edge injects after verifying the session.
// Webhook rejections answer 400 only for bad signatures or shapes and
// never leak internal reasons; everything else the reconciler refuses
// is logged and acknowledged with 200 so the provider stops retrying.
package httpapi
