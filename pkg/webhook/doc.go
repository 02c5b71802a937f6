// Package webhook verifies inbound payment-provider webhook signatures.
//
// The provider signs each delivery with HMAC-SHA256 over
// "<timestamp>:<raw body>" and ships the result in a single header of
// semicolon- or comma-delimited key=value pairs (for example
// "ts=1712345678;h1=abc123..."). Verification is a pure predicate:
// parse the header, recompute the MAC, compare in constant time, and
// bound the replay window by the signature timestamp.
//
// Basic usage:
//
//	hdr, err := webhook.ParseSignatureHeader(r.Header.Get("Paddle-Signature"))
//	if err != nil {
//		// reject with 400, log the reason internally
//	}
//	if err := webhook.Verify(secret, rawBody, hdr, time.Now()); err != nil {
//		// reject with 400, log the reason internally
//	}
//
// Callers must never leak the verification failure reason over the
// wire; the sentinel errors exist for internal logging only.
package webhook
