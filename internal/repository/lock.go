package repository

import (
	"context"
	"time"

	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRepository stores short-lived named advisory locks.
type LockRepository interface {
	TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, owner string) error
}

type lockRepoImpl struct {
	db *gorm.DB
}

func NewLockRepository(db *gorm.DB) LockRepository {
	return &lockRepoImpl{db: db}
}

func (r *lockRepoImpl) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	acquired := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// expired holders lose the lock
		if err := tx.Where("name = ? AND expires_at < ?", name, now).Delete(&model.AdvisoryLock{}).Error; err != nil {
			return err
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.AdvisoryLock{
			Name:      name,
			Owner:     owner,
			ExpiresAt: now.Add(ttl),
		})
		if result.Error != nil {
			return result.Error
		}
		acquired = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, translateErr(err, "acquire lock %s", name)
	}
	return acquired, nil
}

func (r *lockRepoImpl) Release(ctx context.Context, name, owner string) error {
	err := r.db.WithContext(ctx).
		Where("name = ? AND owner = ?", name, owner).
		Delete(&model.AdvisoryLock{}).Error
	return translateErr(err, "release lock %s", name)
}
