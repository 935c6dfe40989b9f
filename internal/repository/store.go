package repository

import (
	"context"

	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StoreRepository interface {
	FindByID(ctx context.Context, id string) (*model.Store, error)
	FindByDomain(ctx context.Context, domain string) (*model.Store, error)
	List(ctx context.Context) ([]*model.Store, error)
	// Save upserts the store and replaces all of its mappings.
	Save(ctx context.Context, store *model.Store) error
}

type storeRepoImpl struct {
	db *gorm.DB
}

func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepoImpl{db: db}
}

func preloadMappings(db *gorm.DB) *gorm.DB {
	return db.
		Preload("ChannelMappings").
		Preload("GatewayMappings").
		Preload("TaxMappings")
}

func (r *storeRepoImpl) FindByID(ctx context.Context, id string) (*model.Store, error) {
	var store model.Store
	err := preloadMappings(r.db.WithContext(ctx)).Where("id = ?", id).First(&store).Error
	if err != nil {
		return nil, translateErr(err, "find store %s", id)
	}
	return &store, nil
}

func (r *storeRepoImpl) FindByDomain(ctx context.Context, domain string) (*model.Store, error) {
	var store model.Store
	err := preloadMappings(r.db.WithContext(ctx)).Where("shop_domain = ?", domain).First(&store).Error
	if err != nil {
		return nil, translateErr(err, "find store by domain %s", domain)
	}
	return &store, nil
}

func (r *storeRepoImpl) List(ctx context.Context) ([]*model.Store, error) {
	var stores []*model.Store
	if err := preloadMappings(r.db.WithContext(ctx)).Order("id").Find(&stores).Error; err != nil {
		return nil, translateErr(err, "list stores")
	}
	return stores, nil
}

func (r *storeRepoImpl) Save(ctx context.Context, store *model.Store) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(store).Error
		if err != nil {
			return translateErr(err, "save store %s", store.ID)
		}

		for _, m := range []interface{}{&model.SalesChannelMapping{}, &model.PaymentGatewayMapping{}, &model.TaxAccountMapping{}} {
			if err := tx.Where("store_id = ?", store.ID).Delete(m).Error; err != nil {
				return translateErr(err, "clear mappings of store %s", store.ID)
			}
		}

		for i := range store.ChannelMappings {
			store.ChannelMappings[i].ID = 0
			store.ChannelMappings[i].StoreID = store.ID
		}
		for i := range store.GatewayMappings {
			store.GatewayMappings[i].ID = 0
			store.GatewayMappings[i].StoreID = store.ID
		}
		for i := range store.TaxMappings {
			store.TaxMappings[i].ID = 0
			store.TaxMappings[i].StoreID = store.ID
		}

		if len(store.ChannelMappings) > 0 {
			if err := tx.Create(&store.ChannelMappings).Error; err != nil {
				return translateErr(err, "save channel mappings of store %s", store.ID)
			}
		}
		if len(store.GatewayMappings) > 0 {
			if err := tx.Create(&store.GatewayMappings).Error; err != nil {
				return translateErr(err, "save gateway mappings of store %s", store.ID)
			}
		}
		if len(store.TaxMappings) > 0 {
			if err := tx.Create(&store.TaxMappings).Error; err != nil {
				return translateErr(err, "save tax mappings of store %s", store.ID)
			}
		}
		return nil
	})
}
