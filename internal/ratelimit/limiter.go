// Package ratelimit gates outbound storefront API calls with a token bucket
// per (store, api type). Buckets refill lazily on access; no background
// goroutine is involved.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/metrics"
	"shopify-order-sync/internal/model"
)

// Limit is the refill rate (tokens per second) and capacity of a bucket.
type Limit struct {
	Rate     float64
	Capacity float64
}

var DefaultLimits = map[model.APIType]Limit{
	model.APIRest:    {Rate: 2, Capacity: 40},
	model.APIGraphQL: {Rate: 100, Capacity: 1000},
}

const (
	DefaultTTL     = time.Hour
	DefaultPoll    = 100 * time.Millisecond
	DefaultMaxWait = 30 * time.Second
)

type Limiter struct {
	store   BucketStore
	limits  map[model.APIType]Limit
	ttl     time.Duration
	poll    time.Duration
	maxWait time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Limiter)

func WithLimits(limits map[model.APIType]Limit) Option {
	return func(l *Limiter) { l.limits = limits }
}

func WithPoll(d time.Duration) Option {
	return func(l *Limiter) { l.poll = d }
}

func WithMaxWait(d time.Duration) Option {
	return func(l *Limiter) { l.maxWait = d }
}

// WithClock replaces wall-clock time and sleeping, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

func New(store BucketStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:   store,
		limits:  DefaultLimits,
		ttl:     DefaultTTL,
		poll:    DefaultPoll,
		maxWait: DefaultMaxWait,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key is the bucket key for a store and api type.
func Key(storeID string, api model.APIType) string {
	return fmt.Sprintf("shopify_rate_limit:%s:%s", storeID, api)
}

func (l *Limiter) limitFor(api model.APIType) (Limit, error) {
	limit, ok := l.limits[api]
	if !ok {
		return Limit{}, apperror.New(apperror.CodeValidation, "unknown api type %q", api)
	}
	return limit, nil
}

// refill tops the bucket up for the time elapsed since the last refill.
// Buckets idle for longer than the TTL start over full.
func (l *Limiter) refill(bucket *model.RateLimitBucket, found bool, limit Limit, now time.Time) {
	if !found || now.Sub(bucket.LastRefill) > l.ttl {
		bucket.Tokens = limit.Capacity
		bucket.LastRefill = now
		return
	}

	elapsed := now.Sub(bucket.LastRefill).Seconds()
	if elapsed > 0 {
		bucket.Tokens = math.Min(limit.Capacity, bucket.Tokens+elapsed*limit.Rate)
		bucket.LastRefill = now
	}
}

// TryAcquire debits cost tokens if the bucket holds enough of them.
func (l *Limiter) TryAcquire(ctx context.Context, storeID string, api model.APIType, cost float64) (bool, error) {
	limit, err := l.limitFor(api)
	if err != nil {
		return false, err
	}

	acquired := false
	err = l.store.Update(ctx, Key(storeID, api), func(bucket *model.RateLimitBucket, found bool) error {
		l.refill(bucket, found, limit, l.now())
		if bucket.Tokens >= cost {
			bucket.Tokens -= cost
			acquired = true
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("acquire rate limit tokens: %w", err)
	}
	return acquired, nil
}

// WaitIfNeeded blocks until cost tokens are available, then debits them.
// It polls at a fixed interval and gives up after the configured max wait.
func (l *Limiter) WaitIfNeeded(ctx context.Context, storeID string, api model.APIType, cost float64) error {
	limit, err := l.limitFor(api)
	if err != nil {
		return err
	}
	if cost > limit.Capacity {
		return apperror.New(apperror.CodeValidation, "cost %.0f exceeds %s capacity %.0f", cost, api, limit.Capacity)
	}

	start := l.now()
	for {
		ok, err := l.TryAcquire(ctx, storeID, api, cost)
		if err != nil {
			return err
		}
		if ok {
			metrics.RateLimitWaitSeconds.WithLabelValues(string(api)).Observe(l.now().Sub(start).Seconds())
			return nil
		}

		if l.now().Sub(start) >= l.maxWait {
			return fmt.Errorf("rate limit wait for %s exceeded %s", Key(storeID, api), l.maxWait)
		}
		if err := l.sleep(ctx, l.poll); err != nil {
			return err
		}
	}
}

// RecordRequest debits cost after the fact. The balance may go negative,
// which delays later callers until the bucket refills.
func (l *Limiter) RecordRequest(ctx context.Context, storeID string, api model.APIType, cost float64) error {
	limit, err := l.limitFor(api)
	if err != nil {
		return err
	}

	err = l.store.Update(ctx, Key(storeID, api), func(bucket *model.RateLimitBucket, found bool) error {
		l.refill(bucket, found, limit, l.now())
		bucket.Tokens -= cost
		return nil
	})
	if err != nil {
		return fmt.Errorf("record rate limited request: %w", err)
	}
	return nil
}

func (l *Limiter) AvailableTokens(ctx context.Context, storeID string, api model.APIType) (float64, error) {
	limit, err := l.limitFor(api)
	if err != nil {
		return 0, err
	}

	var tokens float64
	err = l.store.Update(ctx, Key(storeID, api), func(bucket *model.RateLimitBucket, found bool) error {
		l.refill(bucket, found, limit, l.now())
		tokens = bucket.Tokens
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("read rate limit tokens: %w", err)
	}
	return tokens, nil
}

func (l *Limiter) Reset(ctx context.Context, storeID string, api model.APIType) error {
	if _, err := l.limitFor(api); err != nil {
		return err
	}
	return l.store.Delete(ctx, Key(storeID, api))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
