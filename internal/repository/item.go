package repository

import (
	"context"
	"errors"

	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemRepository resolves catalog items. Every finder ignores disabled items
// and returns a NOT_FOUND error when nothing matches.
type ItemRepository interface {
	FindByStoreLink(ctx context.Context, storeID, variantID, productID string) (*model.Item, error)
	FindByCode(ctx context.Context, itemCode string) (*model.Item, error)
	FindBySKU(ctx context.Context, sku string) (*model.Item, error)
	FindByBarcode(ctx context.Context, barcode string) (*model.Item, error)
	FindByName(ctx context.Context, name string) (*model.Item, error)
	Upsert(ctx context.Context, item *model.Item) error
	LinkStore(ctx context.Context, link *model.ItemStoreLink) error
}

type itemRepoImpl struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepoImpl{db: db}
}

func (r *itemRepoImpl) findEnabled(ctx context.Context, query string, args ...interface{}) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).
		Where("disabled = ?", false).
		Where(query, args...).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepoImpl) FindByStoreLink(ctx context.Context, storeID, variantID, productID string) (*model.Item, error) {
	lookups := []struct {
		column string
		value  string
	}{
		{"shopify_variant_id", variantID},
		{"shopify_product_id", productID},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		item, err := r.findEnabled(ctx,
			"item_code IN (SELECT item_code FROM item_store_links WHERE store_id = ? AND "+l.column+" = ?)",
			storeID, l.value)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, translateErr(err, "find item by %s %s", l.column, l.value)
		}
	}
	return nil, translateErr(gorm.ErrRecordNotFound, "find item linked to variant %q product %q", variantID, productID)
}

func (r *itemRepoImpl) FindByCode(ctx context.Context, itemCode string) (*model.Item, error) {
	item, err := r.findEnabled(ctx, "item_code = ?", itemCode)
	return item, translateErr(err, "find item %s", itemCode)
}

func (r *itemRepoImpl) FindBySKU(ctx context.Context, sku string) (*model.Item, error) {
	item, err := r.findEnabled(ctx, "sku = ?", sku)
	return item, translateErr(err, "find item by sku %s", sku)
}

func (r *itemRepoImpl) FindByBarcode(ctx context.Context, barcode string) (*model.Item, error) {
	item, err := r.findEnabled(ctx,
		"item_code IN (SELECT item_code FROM item_barcodes WHERE barcode = ?)", barcode)
	return item, translateErr(err, "find item by barcode %s", barcode)
}

func (r *itemRepoImpl) FindByName(ctx context.Context, name string) (*model.Item, error) {
	item, err := r.findEnabled(ctx, "item_name = ?", name)
	return item, translateErr(err, "find item by name %s", name)
}

func (r *itemRepoImpl) Upsert(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"item_name", "sku", "disabled"}),
		}).Create(item).Error
		if err != nil {
			return translateErr(err, "upsert item %s", item.ItemCode)
		}

		for i := range item.Barcodes {
			item.Barcodes[i].ItemCode = item.ItemCode
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "barcode"}},
				DoUpdates: clause.AssignmentColumns([]string{"item_code"}),
			}).Create(&item.Barcodes[i]).Error
			if err != nil {
				return translateErr(err, "upsert barcode %s", item.Barcodes[i].Barcode)
			}
		}
		return nil
	})
}

func (r *itemRepoImpl) LinkStore(ctx context.Context, link *model.ItemStoreLink) error {
	err := r.db.WithContext(ctx).Create(link).Error
	return translateErr(err, "link item %s to store %s", link.ItemCode, link.StoreID)
}
