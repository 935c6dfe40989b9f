package ratelimit

import (
	"context"
	"sync"

	"shopify-order-sync/internal/model"
)

// BucketStore performs an atomic read-modify-write on one bucket key.
// repository.RateLimitBucketRepository is the durable implementation.
type BucketStore interface {
	Update(ctx context.Context, key string, fn func(bucket *model.RateLimitBucket, found bool) error) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps buckets in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]model.RateLimitBucket
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]model.RateLimitBucket)}
}

func (s *MemoryStore) Update(_ context.Context, key string, fn func(bucket *model.RateLimitBucket, found bool) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, found := s.buckets[key]
	if !found {
		bucket = model.RateLimitBucket{Key: key}
	}
	if err := fn(&bucket, found); err != nil {
		return err
	}
	s.buckets[key] = bucket
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}
