package repository

import (
	"context"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uint) (*model.Invoice, error)
	FindByName(ctx context.Context, name string) (*model.Invoice, error)
	FindActiveByOrder(ctx context.Context, storeID, orderID string) (*model.Invoice, error)
	// Update writes header fields only. It fails with a conflict if the stored
	// version differs from invoice.Version.
	Update(ctx context.Context, invoice *model.Invoice) error
	// ReplaceLines writes header fields and swaps items and taxes atomically.
	ReplaceLines(ctx context.Context, invoice *model.Invoice) error
	Delete(ctx context.Context, invoice *model.Invoice) error
	ListHollowDrafts(ctx context.Context, storeID string) ([]*model.Invoice, error)
	CountByStatus(ctx context.Context, storeID string, status model.DocStatus) (int64, error)
	CountSubmittedSince(ctx context.Context, storeID string, since time.Time) (int64, error)
	CountPendingDelivery(ctx context.Context, storeID string) (int64, error)
}

type invoiceRepoImpl struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepoImpl{
		db: db,
	}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("idx") }).
		Preload("Taxes", func(db *gorm.DB) *gorm.DB { return db.Order("idx") })
}

func (r *invoiceRepoImpl) Create(ctx context.Context, invoice *model.Invoice) error {
	if invoice.Name == "" {
		invoice.Name = NewDocumentName("SINV")
	}
	if invoice.Status == "" {
		invoice.Status = model.DocDraft
	}
	invoice.Version = 1
	invoice.ActiveKey = nil
	if invoice.Status != model.DocCancelled {
		invoice.ActiveKey = orderKey(invoice.StoreID, invoice.ShopifyOrderID)
	}
	numberLines(invoice)

	err := r.db.WithContext(ctx).Create(invoice).Error
	return translateErr(err, "create invoice for order %s", invoice.ShopifyOrderID)
}

func (r *invoiceRepoImpl) FindByID(ctx context.Context, id uint) (*model.Invoice, error) {
	var invoice model.Invoice
	err := preloadLines(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		return nil, translateErr(err, "find invoice %d", id)
	}
	return &invoice, nil
}

func (r *invoiceRepoImpl) FindByName(ctx context.Context, name string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := preloadLines(r.db.WithContext(ctx)).
		Where("name = ?", name).
		First(&invoice).Error
	if err != nil {
		return nil, translateErr(err, "find invoice %s", name)
	}
	return &invoice, nil
}

func (r *invoiceRepoImpl) FindActiveByOrder(ctx context.Context, storeID, orderID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := preloadLines(r.db.WithContext(ctx)).
		Where("store_id = ? AND shopify_order_id = ? AND status <> ?", storeID, orderID, model.DocCancelled).
		First(&invoice).Error
	if err != nil {
		return nil, translateErr(err, "find invoice for order %s", orderID)
	}
	return &invoice, nil
}

func (r *invoiceRepoImpl) Update(ctx context.Context, invoice *model.Invoice) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if invoice.Status == model.DocCancelled {
			if err := checkNoLiveChildren(tx, invoice); err != nil {
				return err
			}
		}

		result := tx.Model(&model.Invoice{}).
			Where("id = ? AND version = ?", invoice.ID, invoice.Version).
			Updates(invoiceColumns(invoice))
		if result.Error != nil {
			return translateErr(result.Error, "update invoice %s", invoice.Name)
		}
		if result.RowsAffected == 0 {
			return conflict("invoice", invoice.Name, invoice.Version)
		}
		return nil
	})
	if err != nil {
		return err
	}

	invoice.Version++
	return nil
}

// checkNoLiveChildren rejects cancelling an invoice that live delivery notes
// or payments still reference.
func checkNoLiveChildren(tx *gorm.DB, invoice *model.Invoice) error {
	var notes, payments int64
	if err := tx.Model(&model.DeliveryNote{}).
		Where("invoice_id = ? AND status <> ?", invoice.ID, model.DocCancelled).
		Count(&notes).Error; err != nil {
		return translateErr(err, "count delivery notes of invoice %s", invoice.Name)
	}
	if err := tx.Model(&model.PaymentEntry{}).
		Where("invoice_id = ? AND status <> ?", invoice.ID, model.DocCancelled).
		Count(&payments).Error; err != nil {
		return translateErr(err, "count payments of invoice %s", invoice.Name)
	}
	if notes > 0 || payments > 0 {
		return apperror.New(apperror.CodeDependency,
			"invoice %s is referenced by %d live delivery notes and %d live payments", invoice.Name, notes, payments)
	}
	return nil
}

func (r *invoiceRepoImpl) ReplaceLines(ctx context.Context, invoice *model.Invoice) error {
	numberLines(invoice)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Invoice{}).
			Where("id = ? AND version = ?", invoice.ID, invoice.Version).
			Updates(invoiceColumns(invoice))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflict("invoice", invoice.Name, invoice.Version)
		}

		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&model.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&model.InvoiceTax{}).Error; err != nil {
			return err
		}

		if len(invoice.Items) > 0 {
			if err := tx.Create(&invoice.Items).Error; err != nil {
				return err
			}
		}
		if len(invoice.Taxes) > 0 {
			if err := tx.Create(&invoice.Taxes).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperror.IsConflict(err) {
			return err
		}
		return translateErr(err, "replace lines of invoice %s", invoice.Name)
	}

	invoice.Version++
	return nil
}

func (r *invoiceRepoImpl) Delete(ctx context.Context, invoice *model.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&model.InvoiceItem{}).Error; err != nil {
			return translateErr(err, "delete items of invoice %s", invoice.Name)
		}
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&model.InvoiceTax{}).Error; err != nil {
			return translateErr(err, "delete taxes of invoice %s", invoice.Name)
		}

		result := tx.Where("id = ? AND version = ?", invoice.ID, invoice.Version).Delete(&model.Invoice{})
		if result.Error != nil {
			return translateErr(result.Error, "delete invoice %s", invoice.Name)
		}
		if result.RowsAffected == 0 {
			return conflict("invoice", invoice.Name, invoice.Version)
		}
		return nil
	})
}

func (r *invoiceRepoImpl) ListHollowDrafts(ctx context.Context, storeID string) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	q := r.db.WithContext(ctx).
		Where("status = ?", model.DocDraft).
		Where("NOT EXISTS (SELECT 1 FROM invoice_items WHERE invoice_items.invoice_id = invoices.id)")
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}

	if err := q.Order("id").Find(&invoices).Error; err != nil {
		return nil, translateErr(err, "list hollow invoices")
	}
	return invoices, nil
}

func (r *invoiceRepoImpl) CountByStatus(ctx context.Context, storeID string, status model.DocStatus) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.Invoice{}).Where("status = ?", status)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}
	err := q.Count(&count).Error
	return count, translateErr(err, "count %s invoices", status)
}

func (r *invoiceRepoImpl) CountSubmittedSince(ctx context.Context, storeID string, since time.Time) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("status = ? AND submitted_at >= ?", model.DocSubmitted, since)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}
	err := q.Count(&count).Error
	return count, translateErr(err, "count submitted invoices")
}

func (r *invoiceRepoImpl) CountPendingDelivery(ctx context.Context, storeID string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("status = ?", model.DocSubmitted).
		Where("NOT EXISTS (SELECT 1 FROM delivery_notes WHERE delivery_notes.invoice_id = invoices.id AND delivery_notes.status <> ?)", model.DocCancelled)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}
	err := q.Count(&count).Error
	return count, translateErr(err, "count invoices pending delivery")
}

func invoiceColumns(invoice *model.Invoice) map[string]interface{} {
	activeKey := invoice.ActiveKey
	if invoice.Status == model.DocCancelled {
		activeKey = nil
	} else if activeKey == nil {
		activeKey = orderKey(invoice.StoreID, invoice.ShopifyOrderID)
	}
	invoice.ActiveKey = activeKey

	return map[string]interface{}{
		"status":               invoice.Status,
		"active_key":           activeKey,
		"customer_id":          invoice.CustomerID,
		"financial_status":     invoice.FinancialStatus,
		"fulfillment_status":   invoice.FulfillmentStatus,
		"payment_gateway":      invoice.PaymentGateway,
		"sales_channel":        invoice.SalesChannel,
		"cost_center":          invoice.CostCenter,
		"bank_account":         invoice.BankAccount,
		"payment_capture_date": invoice.PaymentCaptureDate,
		"posting_date":         invoice.PostingDate,
		"due_date":             invoice.DueDate,
		"remarks":              invoice.Remarks,
		"tags":                 invoice.Tags,
		"net_total":            invoice.NetTotal,
		"total_taxes":          invoice.TotalTaxes,
		"grand_total":          invoice.GrandTotal,
		"outstanding_amount":   invoice.OutstandingAmount,
		"submitted_at":         invoice.SubmittedAt,
		"version":              gorm.Expr("version + 1"),
		"updated_at":           time.Now(),
	}
}

func numberLines(invoice *model.Invoice) {
	for i := range invoice.Items {
		invoice.Items[i].ID = 0
		invoice.Items[i].InvoiceID = invoice.ID
		invoice.Items[i].Idx = i + 1
	}
	for i := range invoice.Taxes {
		invoice.Taxes[i].ID = 0
		invoice.Taxes[i].InvoiceID = invoice.ID
		invoice.Taxes[i].Idx = i + 1
	}
}
