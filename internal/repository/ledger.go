package repository

import (
	"context"
	"errors"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository interface {
	Create(ctx context.Context, entry *model.LedgerEntry) error
	FindByID(ctx context.Context, id string) (*model.LedgerEntry, error)
	// UpdateStatus moves an entry from one status to another. It is a
	// compare-and-set: a concurrent writer that moved the entry first wins.
	UpdateStatus(ctx context.Context, id string, from, to model.LedgerStatus, message string) error
	ListByOrder(ctx context.Context, storeID, orderID string, status model.LedgerStatus) ([]*model.LedgerEntry, error)
	ListByStatus(ctx context.Context, storeID string, status model.LedgerStatus, limit int) ([]*model.LedgerEntry, error)
	LatestForOrder(ctx context.Context, storeID, orderID string) (*model.LedgerEntry, error)
	CountByStatusSince(ctx context.Context, storeID string, since time.Time) (map[model.LedgerStatus]int64, error)
	LastSuccess(ctx context.Context, storeID string) (*time.Time, error)
}

type ledgerRepoImpl struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepoImpl{db: db}
}

func (r *ledgerRepoImpl) Create(ctx context.Context, entry *model.LedgerEntry) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	return translateErr(err, "create ledger entry %s", entry.ID)
}

func (r *ledgerRepoImpl) FindByID(ctx context.Context, id string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, translateErr(err, "find ledger entry %s", id)
	}
	return &entry, nil
}

func (r *ledgerRepoImpl) UpdateStatus(ctx context.Context, id string, from, to model.LedgerStatus, message string) error {
	result := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"message":    message,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return translateErr(result.Error, "update ledger entry %s", id)
	}
	if result.RowsAffected == 0 {
		return apperror.New(apperror.CodeConflict, "ledger entry %s is no longer %s", id, from)
	}
	return nil
}

func (r *ledgerRepoImpl) ListByOrder(ctx context.Context, storeID, orderID string, status model.LedgerStatus) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	q := r.db.WithContext(ctx).
		Where("store_id = ? AND shopify_order_id = ?", storeID, orderID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	if err := q.Order("created_at").Find(&entries).Error; err != nil {
		return nil, translateErr(err, "list ledger entries for order %s", orderID)
	}
	return entries, nil
}

func (r *ledgerRepoImpl) ListByStatus(ctx context.Context, storeID string, status model.LedgerStatus, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	q := r.db.WithContext(ctx).Where("status = ?", status)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Order("created_at").Find(&entries).Error; err != nil {
		return nil, translateErr(err, "list %s ledger entries", status)
	}
	return entries, nil
}

func (r *ledgerRepoImpl) LatestForOrder(ctx context.Context, storeID, orderID string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND shopify_order_id = ?", storeID, orderID).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		return nil, translateErr(err, "find latest ledger entry for order %s", orderID)
	}
	return &entry, nil
}

func (r *ledgerRepoImpl) CountByStatusSince(ctx context.Context, storeID string, since time.Time) (map[model.LedgerStatus]int64, error) {
	var rows []struct {
		Status model.LedgerStatus
		Count  int64
	}

	q := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ?", since)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}

	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, translateErr(err, "count ledger entries")
	}

	counts := make(map[model.LedgerStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *ledgerRepoImpl) LastSuccess(ctx context.Context, storeID string) (*time.Time, error) {
	var entry model.LedgerEntry
	q := r.db.WithContext(ctx).Where("status = ?", model.LedgerSuccess)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}

	err := q.Order("updated_at DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateErr(err, "find last success")
	}
	return &entry.UpdatedAt, nil
}
