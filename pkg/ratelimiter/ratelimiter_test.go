package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redraftlabs/redraft/pkg/ratelimiter"
)

func newLimiter(t *testing.T, cfg ratelimiter.Config) *ratelimiter.Bucket {
	t.Helper()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	limiter, err := ratelimiter.New(store, cfg)
	require.NoError(t, err)
	return limiter
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))

	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1, RefillInterval: 0},
	} {
		_, err := ratelimiter.New(store, cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}
}

func TestBucketAllowsBurstThenDenies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter := newLimiter(t, ratelimiter.Config{
		Capacity:       3,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})

	for i := range 3 {
		res, err := limiter.Allow(ctx, "user:a")
		require.NoError(t, err)
		assert.True(t, res.Allowed(), "request %d should pass", i+1)
	}

	res, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Positive(t, res.RetryAfter())

	// Denied requests do not dig the bucket deeper.
	again, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.Equal(t, res.Remaining, again.Remaining)
}

func TestBucketKeysAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter := newLimiter(t, ratelimiter.Config{
		Capacity:       1,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})

	res, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	require.True(t, res.Allowed())

	res, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	require.False(t, res.Allowed())

	res, err = limiter.Allow(ctx, "user:b")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestBucketRefills(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter := newLimiter(t, ratelimiter.Config{
		Capacity:       1,
		RefillRate:     1,
		RefillInterval: 20 * time.Millisecond,
	})

	res, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	require.True(t, res.Allowed())

	res, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	require.False(t, res.Allowed())

	time.Sleep(30 * time.Millisecond)

	res, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestBucketAllowN(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter := newLimiter(t, ratelimiter.Config{
		Capacity:       5,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})

	res, err := limiter.AllowN(ctx, "user:a", 4)
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 1, res.Remaining)

	res, err = limiter.AllowN(ctx, "user:a", 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	_, err = limiter.AllowN(ctx, "user:a", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestBucketStatusDoesNotConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter := newLimiter(t, ratelimiter.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})

	for range 3 {
		res, err := limiter.Status(ctx, "user:a")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	}
}

func TestBucketReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	limiter := newLimiter(t, ratelimiter.Config{
		Capacity:       1,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})

	res, err := limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	require.True(t, res.Allowed())

	require.NoError(t, limiter.Reset(ctx, "user:a"))

	res, err = limiter.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	limiter := newLimiter(t, ratelimiter.Config{
		Capacity:       1,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})

	handler := ratelimiter.Middleware(limiter, func(r *http.Request) string {
		return r.Header.Get("X-User")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/rewrite", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = do("alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Empty keys bypass the limiter.
	rec = do("")
	assert.Equal(t, http.StatusOK, rec.Code)
}
