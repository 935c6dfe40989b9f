package retry

import (
	"context"
	"sync"
	"testing"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLocker struct {
	mu    sync.Mutex
	owner map[string]string
}

func (l *memLocker) TryAcquire(_ context.Context, name, owner string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == nil {
		l.owner = map[string]string{}
	}
	if _, held := l.owner[name]; held {
		return false, nil
	}
	l.owner[name] = owner
	return true, nil
}

func (l *memLocker) Release(_ context.Context, name, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner[name] == owner {
		delete(l.owner, name)
	}
	return nil
}

var fastLocks = LockPolicy{TTL: time.Minute, Wait: 30 * time.Millisecond, Poll: 5 * time.Millisecond}

func TestWithLock_RunsAndReleases(t *testing.T) {
	ctx := context.Background()
	locker := &memLocker{}

	ran := false
	err := WithLock(ctx, locker, fastLocks, "customer-link:1", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, locker.owner)
}

func TestWithLock_SkipsWhenHeld(t *testing.T) {
	ctx := context.Background()
	locker := &memLocker{}
	ok, _ := locker.TryAcquire(ctx, "customer-link:1", "other-worker", time.Minute)
	require.True(t, ok)

	ran := false
	err := WithLock(ctx, locker, fastLocks, "customer-link:1", func(context.Context) error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, apperror.IsLockNotAcquired(err))
	assert.False(t, ran)
	assert.Equal(t, "other-worker", locker.owner["customer-link:1"])
}

func TestWithLock_DatabaseLocker(t *testing.T) {
	ctx := context.Background()
	locker := repository.NewLockRepository(testutil.NewDB(t))

	err := WithLock(ctx, locker, fastLocks, "customer-link:7", func(ctx context.Context) error {
		// nested attempt on the same name must be skipped
		inner := WithLock(ctx, locker, fastLocks, "customer-link:7", func(context.Context) error { return nil })
		assert.True(t, apperror.IsLockNotAcquired(inner))
		return nil
	})
	require.NoError(t, err)

	ok, err := locker.TryAcquire(ctx, "customer-link:7", "after", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
