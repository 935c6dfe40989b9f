package repository

import (
	"context"
	"errors"
	"time"

	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateLimitBucketRepository persists token buckets. Update runs fn inside a
// single transaction holding the row, so each access is one atomic
// read-modify-write against its key.
type RateLimitBucketRepository interface {
	Update(ctx context.Context, key string, fn func(bucket *model.RateLimitBucket, found bool) error) error
	Delete(ctx context.Context, key string) error
}

type bucketRepoImpl struct {
	db *gorm.DB
}

func NewRateLimitBucketRepository(db *gorm.DB) RateLimitBucketRepository {
	return &bucketRepoImpl{db: db}
}

func (r *bucketRepoImpl) Update(ctx context.Context, key string, fn func(bucket *model.RateLimitBucket, found bool) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bucket model.RateLimitBucket
		found := true

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("bucket_key = ?", key).
			Take(&bucket).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			bucket = model.RateLimitBucket{Key: key}
		} else if err != nil {
			return err
		}

		if err := fn(&bucket, found); err != nil {
			return err
		}
		bucket.UpdatedAt = time.Now()

		if !found {
			return tx.Create(&bucket).Error
		}
		return tx.Model(&model.RateLimitBucket{}).
			Where("bucket_key = ?", key).
			Updates(map[string]interface{}{
				"tokens":      bucket.Tokens,
				"last_refill": bucket.LastRefill,
				"updated_at":  bucket.UpdatedAt,
			}).Error
	})
	if err != nil {
		return translateErr(err, "update rate limit bucket %s", key)
	}
	return nil
}

func (r *bucketRepoImpl) Delete(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).Where("bucket_key = ?", key).Delete(&model.RateLimitBucket{}).Error
	return translateErr(err, "delete rate limit bucket %s", key)
}
