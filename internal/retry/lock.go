package retry

import (
	"context"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/logger"

	"github.com/google/uuid"
)

// Locker stores named advisory locks with an expiry.
type Locker interface {
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

type LockPolicy struct {
	TTL  time.Duration
	Wait time.Duration
	Poll time.Duration
}

func DefaultLockPolicy() LockPolicy {
	return LockPolicy{TTL: 30 * time.Second, Wait: 2 * time.Second, Poll: 100 * time.Millisecond}
}

// WithLock runs fn while holding the named lock. It is meant for idempotent
// appends: when the lock is still held by someone else after Wait, fn is not
// run and a LOCK_NOT_ACQUIRED error is returned for the caller to skip on.
func WithLock(ctx context.Context, locker Locker, p LockPolicy, name string, fn func(ctx context.Context) error) error {
	owner := uuid.NewString()
	deadline := time.Now().Add(p.Wait)

	for {
		ok, err := locker.TryAcquire(ctx, name, owner, p.TTL)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return apperror.New(apperror.CodeLockNotAcquired, "lock %s is held", name)
		}
		if err := Sleep(ctx, p.Poll); err != nil {
			return err
		}
	}

	defer func() {
		if err := locker.Release(context.WithoutCancel(ctx), name, owner); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("lock", name).Msg("release advisory lock")
		}
	}()

	return fn(ctx)
}
