package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the limiter sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps++
	c.mu.Unlock()
	c.Advance(d)
	return nil
}

func newTestLimiter(store BucketStore, clock *fakeClock, opts ...Option) *Limiter {
	opts = append([]Option{WithClock(clock.Now, clock.Sleep)}, opts...)
	return New(store, opts...)
}

func TestLimiter_NewBucketStartsFull(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(NewMemoryStore(), newFakeClock())

	tokens, err := l.AvailableTokens(ctx, "S1", model.APIRest)
	require.NoError(t, err)
	assert.Equal(t, 40.0, tokens)

	tokens, err = l.AvailableTokens(ctx, "S1", model.APIGraphQL)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, tokens)
}

func TestLimiter_RefillIsLazyAndCapped(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLimiter(NewMemoryStore(), clock)

	require.NoError(t, l.RecordRequest(ctx, "S1", model.APIRest, 40))
	tokens, err := l.AvailableTokens(ctx, "S1", model.APIRest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tokens)

	clock.Advance(5 * time.Second)
	tokens, err = l.AvailableTokens(ctx, "S1", model.APIRest)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, tokens, 1e-9)

	clock.Advance(10 * time.Minute)
	tokens, err = l.AvailableTokens(ctx, "S1", model.APIRest)
	require.NoError(t, err)
	assert.Equal(t, 40.0, tokens)
}

func TestLimiter_WaitIfNeededPollsUntilTokens(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLimiter(NewMemoryStore(), clock)

	require.NoError(t, l.RecordRequest(ctx, "S1", model.APIRest, 40))

	// 1 token at 2/s takes 0.5s, i.e. five 100ms polls
	require.NoError(t, l.WaitIfNeeded(ctx, "S1", model.APIRest, 1))
	assert.Equal(t, 5, clock.sleeps)

	tokens, err := l.AvailableTokens(ctx, "S1", model.APIRest)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, tokens, 1e-9)
}

func TestLimiter_WaitIfNeededIsBounded(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := newTestLimiter(NewMemoryStore(), clock, WithMaxWait(time.Second))

	require.NoError(t, l.RecordRequest(ctx, "S1", model.APIRest, 100))

	err := l.WaitIfNeeded(ctx, "S1", model.APIRest, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
}

func TestLimiter_RejectsImpossibleCostAndUnknownAPI(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(NewMemoryStore(), newFakeClock())

	err := l.WaitIfNeeded(ctx, "S1", model.APIRest, 41)
	assert.True(t, apperror.IsValidation(err))

	_, err = l.AvailableTokens(ctx, "S1", model.APIType("soap"))
	assert.True(t, apperror.IsValidation(err))
}

func TestLimiter_BucketsAreIsolatedAndResettable(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(NewMemoryStore(), newFakeClock())

	require.NoError(t, l.RecordRequest(ctx, "S1", model.APIRest, 30))

	other, err := l.AvailableTokens(ctx, "S2", model.APIRest)
	require.NoError(t, err)
	assert.Equal(t, 40.0, other)

	require.NoError(t, l.Reset(ctx, "S1", model.APIRest))
	tokens, err := l.AvailableTokens(ctx, "S1", model.APIRest)
	require.NoError(t, err)
	assert.Equal(t, 40.0, tokens)
}

func TestLimiter_ConcurrentAcquireNeverOverspends(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(NewMemoryStore(), newFakeClock())

	var mu sync.Mutex
	granted := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.TryAcquire(ctx, "S1", model.APIRest, 1)
			if err == nil && ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, granted)
}
