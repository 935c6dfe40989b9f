// Package retry implements read-modify-write against version-checked
// records. A write that loses to a concurrent writer is retried from a fresh
// read, never blindly overwritten.
package retry

import (
	"context"
	"errors"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/metrics"
)

// ErrNoChange may be returned by a mutate func to finish without saving.
var ErrNoChange = errors.New("no change")

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = time.Second
)

type Policy struct {
	MaxRetries int
	// BaseDelay is multiplied by the attempt number between tries.
	BaseDelay time.Duration
	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

// Do loads the record, applies mutate and saves it. When save reports a
// version conflict, Do waits BaseDelay*attempt, reloads and reapplies mutate
// to the fresh copy. After MaxRetries conflicting attempts it returns a
// RETRIES_EXHAUSTED error; the stored record is left as the winner wrote it.
func Do[T any](
	ctx context.Context,
	p Policy,
	load func(ctx context.Context) (T, error),
	mutate func(rec T) error,
	save func(ctx context.Context, rec T) error,
) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		rec, err := load(ctx)
		if err != nil {
			return zero, err
		}

		if err := mutate(rec); err != nil {
			if errors.Is(err, ErrNoChange) {
				return rec, nil
			}
			return zero, err
		}

		err = save(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !apperror.IsConflict(err) {
			return zero, err
		}

		if attempt >= p.MaxRetries {
			metrics.RetriesExhaustedTotal.Inc()
			return zero, apperror.Wrap(apperror.CodeRetriesExhausted, err, "gave up after %d retries", p.MaxRetries)
		}

		metrics.ConflictRetriesTotal.Inc()
		delay := p.BaseDelay * time.Duration(attempt+1)
		logger.Ctx(ctx).Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("version conflict, retrying")

		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
