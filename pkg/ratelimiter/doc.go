// Package ratelimiter provides token bucket rate limiting for job
// admission, with in-memory and Redis storage backends.
//
// The bucket refills at a fixed rate up to a capacity, so callers can
// burst up to the capacity and then sustain the refill rate. The
// rewrite service consumes one token per job start; the HTTP layer can
// reuse the same limiter through Middleware.
//
//	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       10,
//		RefillRate:     1,
//		RefillInterval: time.Second,
//	})
//
//	res, err := limiter.Allow(ctx, "user:"+userID)
//	if err != nil || !res.Allowed() {
//		// deny, retry after res.RetryAfter()
//	}
//
// For multi-instance deployments use NewRedisStore so all instances
// share one bucket per key. Bucket state is updated atomically with a
// Lua script.
package ratelimiter
