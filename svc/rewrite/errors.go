package rewrite

import "errors"

var (
	// ErrEmptyText rejects requests with no words to rewrite.
	ErrEmptyText = errors.New("rewrite: text is empty")

	// ErrInsufficientBalance rejects jobs whose estimated cost exceeds
	// the subscriber's word balance.
	ErrInsufficientBalance = errors.New("rewrite: insufficient word balance")

	// ErrRateLimited rejects job starts beyond the per-subscriber rate.
	ErrRateLimited = errors.New("rewrite: rate limit exceeded")

	// ErrUpstreamTimeout marks an engine call that exceeded its
	// deadline; the failure is opaque beyond that.
	ErrUpstreamTimeout = errors.New("rewrite: upstream engine timed out")

	// ErrEngineFailed wraps non-timeout upstream failures.
	ErrEngineFailed = errors.New("rewrite: upstream engine failed")

	ErrStoreRequired  = errors.New("rewrite: ledger store is required")
	ErrEngineRequired = errors.New("rewrite: engine is required")
)
