package ratelimiter

import (
	"context"
	"time"
)

// Store is a token bucket state backend.
type Store interface {
	// ConsumeTokens refills the bucket for key per config, then takes
	// the requested tokens. A negative remaining count means the
	// request must be denied; denied requests leave the bucket
	// unchanged.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset drops the bucket state for key.
	Reset(ctx context.Context, key string) error
}
