package repository

import (
	"context"
	"time"

	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
)

type PaymentEntryRepository interface {
	Create(ctx context.Context, payment *model.PaymentEntry) error
	FindByID(ctx context.Context, id uint) (*model.PaymentEntry, error)
	ListByInvoice(ctx context.Context, invoiceID uint) ([]*model.PaymentEntry, error)
	HasActive(ctx context.Context, invoiceID uint) (bool, error)
	Update(ctx context.Context, payment *model.PaymentEntry) error
}

type paymentEntryRepoImpl struct {
	db *gorm.DB
}

func NewPaymentEntryRepository(db *gorm.DB) PaymentEntryRepository {
	return &paymentEntryRepoImpl{db: db}
}

func (r *paymentEntryRepoImpl) Create(ctx context.Context, payment *model.PaymentEntry) error {
	if payment.Name == "" {
		payment.Name = NewDocumentName("PE")
	}
	if payment.Status == "" {
		payment.Status = model.DocDraft
	}
	payment.Version = 1
	payment.ActiveKey = nil
	if payment.Status != model.DocCancelled {
		payment.ActiveKey = orderKey(payment.StoreID, payment.ShopifyOrderID)
	}

	err := r.db.WithContext(ctx).Create(payment).Error
	return translateErr(err, "create payment for order %s", payment.ShopifyOrderID)
}

func (r *paymentEntryRepoImpl) FindByID(ctx context.Context, id uint) (*model.PaymentEntry, error) {
	var rec model.PaymentEntry
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, translateErr(err, "find payment %d", id)
	}
	return &rec, nil
}

func (r *paymentEntryRepoImpl) ListByInvoice(ctx context.Context, invoiceID uint) ([]*model.PaymentEntry, error) {
	var payments []*model.PaymentEntry
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id").
		Find(&payments).Error
	if err != nil {
		return nil, translateErr(err, "list payments of invoice %d", invoiceID)
	}
	return payments, nil
}

func (r *paymentEntryRepoImpl) HasActive(ctx context.Context, invoiceID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentEntry{}).
		Where("invoice_id = ? AND status <> ?", invoiceID, model.DocCancelled).
		Count(&count).Error

	return count > 0, translateErr(err, "count payments of invoice %d", invoiceID)
}

func (r *paymentEntryRepoImpl) Update(ctx context.Context, payment *model.PaymentEntry) error {
	activeKey := payment.ActiveKey
	if payment.Status == model.DocCancelled {
		activeKey = nil
	}

	result := r.db.WithContext(ctx).Model(&model.PaymentEntry{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]interface{}{
			"status":     payment.Status,
			"active_key": activeKey,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return translateErr(result.Error, "update payment %s", payment.Name)
	}
	if result.RowsAffected == 0 {
		return conflict("payment", payment.Name, payment.Version)
	}

	payment.ActiveKey = activeKey
	payment.Version++
	return nil
}
