package repository

import (
	"context"
	"time"

	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
)

type DeliveryNoteRepository interface {
	Create(ctx context.Context, note *model.DeliveryNote) error
	FindByID(ctx context.Context, id uint) (*model.DeliveryNote, error)
	ListByInvoice(ctx context.Context, invoiceID uint) ([]*model.DeliveryNote, error)
	ExistsForOrder(ctx context.Context, storeID, orderID string) (bool, error)
	Update(ctx context.Context, note *model.DeliveryNote) error
}

type deliveryNoteRepoImpl struct {
	db *gorm.DB
}

func NewDeliveryNoteRepository(db *gorm.DB) DeliveryNoteRepository {
	return &deliveryNoteRepoImpl{db: db}
}

func (r *deliveryNoteRepoImpl) Create(ctx context.Context, note *model.DeliveryNote) error {
	if note.Name == "" {
		note.Name = NewDocumentName("DN")
	}
	if note.Status == "" {
		note.Status = model.DocDraft
	}
	note.Version = 1
	note.ActiveKey = nil
	if note.Status != model.DocCancelled {
		note.ActiveKey = orderKey(note.StoreID, note.ShopifyOrderID)
	}

	err := r.db.WithContext(ctx).Create(note).Error
	return translateErr(err, "create delivery note for order %s", note.ShopifyOrderID)
}

func (r *deliveryNoteRepoImpl) FindByID(ctx context.Context, id uint) (*model.DeliveryNote, error) {
	var rec model.DeliveryNote
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		return nil, translateErr(err, "find delivery note %d", id)
	}
	return &rec, nil
}

func (r *deliveryNoteRepoImpl) ListByInvoice(ctx context.Context, invoiceID uint) ([]*model.DeliveryNote, error) {
	var notes []*model.DeliveryNote
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("invoice_id = ?", invoiceID).
		Order("id").
		Find(&notes).Error
	if err != nil {
		return nil, translateErr(err, "list delivery notes of invoice %d", invoiceID)
	}
	return notes, nil
}

func (r *deliveryNoteRepoImpl) ExistsForOrder(ctx context.Context, storeID, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.DeliveryNote{}).
		Where("store_id = ? AND shopify_order_id = ? AND status <> ?", storeID, orderID, model.DocCancelled).
		Count(&count).Error

	return count > 0, translateErr(err, "count delivery notes for order %s", orderID)
}

func (r *deliveryNoteRepoImpl) Update(ctx context.Context, note *model.DeliveryNote) error {
	activeKey := note.ActiveKey
	if note.Status == model.DocCancelled {
		activeKey = nil
	}

	result := r.db.WithContext(ctx).Model(&model.DeliveryNote{}).
		Where("id = ? AND version = ?", note.ID, note.Version).
		Updates(map[string]interface{}{
			"status":                  note.Status,
			"active_key":              activeKey,
			"financial_status":        note.FinancialStatus,
			"ship_station_shipment_id": note.ShipStationShipmentID,
			"version":                 gorm.Expr("version + 1"),
			"updated_at":              time.Now(),
		})

	if result.Error != nil {
		return translateErr(result.Error, "update delivery note %s", note.Name)
	}
	if result.RowsAffected == 0 {
		return conflict("delivery note", note.Name, note.Version)
	}

	note.ActiveKey = activeKey
	note.Version++
	return nil
}
