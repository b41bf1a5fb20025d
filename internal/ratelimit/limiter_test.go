package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow/eduflow-backend/internal/ratelimit"
)

func TestLimiter_AllowsWithinLimit(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(ratelimit.Rule{
		Name:   "test",
		Window: time.Minute,
		Limit:  3,
	}, ratelimit.NewMemoryStore())

	for i := int64(1); i <= 3; i++ {
		d, err := limiter.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(3), d.Limit)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Greater(t, d.Reset, time.Duration(0))
	}
}

func TestLimiter_DeniesOverLimit(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(ratelimit.Rule{
		Name:   "test",
		Window: time.Minute,
		Limit:  2,
	}, ratelimit.NewMemoryStore())

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
	}

	d, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.Blocked)
	assert.Equal(t, int64(0), d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(ratelimit.Rule{
		Name:   "test",
		Window: time.Minute,
		Limit:  1,
	}, ratelimit.NewMemoryStore())

	d, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// A different client still has full budget.
	d, err = limiter.Check(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_EscalatesToBlockAfterRepeatedBreaches(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(ratelimit.Rule{
		Name:         "test",
		Window:       time.Minute,
		Limit:        1,
		BlockAfter:   2,
		BlockFor:     30 * time.Minute,
		BreachPeriod: 24 * time.Hour,
	}, ratelimit.NewMemoryStore())

	// Consume the budget, then breach twice.
	_, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)

	d, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.False(t, d.Blocked, "first breach should not block yet")

	d, err = limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Blocked, "second breach should escalate to a block")
	assert.Equal(t, 30*time.Minute, d.RetryAfter)

	// Subsequent requests are rejected up front.
	d, err = limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Blocked)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestLimiter_RefundRestoresBudget(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.NewLimiter(ratelimit.Rule{
		Name:              "test",
		Window:            time.Minute,
		Limit:             1,
		CountFailuresOnly: true,
	}, ratelimit.NewMemoryStore())

	for i := 0; i < 5; i++ {
		d, err := limiter.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "refunded attempt %d should be allowed", i)
		require.NoError(t, limiter.Refund(ctx, "1.2.3.4"))
	}

	// Without the refund the second attempt would be denied.
	_, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	d, err := limiter.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestMemoryStore_WindowExpiry(t *testing.T) {
	ctx := context.Background()
	store := ratelimit.NewMemoryStore()
	defer store.Close()

	count, _, err := store.Incr(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, _, err = store.Incr(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	time.Sleep(20 * time.Millisecond)

	// Expired window starts over.
	count, _, err = store.Incr(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStore_BlockExpiry(t *testing.T) {
	ctx := context.Background()
	store := ratelimit.NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Block(ctx, "k", 10*time.Millisecond))

	d, err := store.BlockedFor(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, d, time.Duration(0))

	time.Sleep(20 * time.Millisecond)

	d, err = store.BlockedFor(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)
}

func TestMemoryStore_CloseStopsSweeperAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := ratelimit.NewMemoryStore()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	// The store still serves counters after the sweeper stops.
	count, _, err := store.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
