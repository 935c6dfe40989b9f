package repository

import (
	"context"

	"shopify-order-sync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.Customer, error)
	FindByShopifyID(ctx context.Context, shopifyCustomerID string) (*model.Customer, error)
	Create(ctx context.Context, customer *model.Customer) error
	Update(ctx context.Context, customer *model.Customer) error
	ListStoreLinks(ctx context.Context, customerID uint) ([]model.CustomerStoreLink, error)
	LinkStore(ctx context.Context, customerID uint, storeID string) error
}

type customerRepoImpl struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepoImpl{db: db}
}

func (r *customerRepoImpl) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&customer).Error
	if err != nil {
		return nil, translateErr(err, "find customer %s", email)
	}
	return &customer, nil
}

func (r *customerRepoImpl) FindByShopifyID(ctx context.Context, shopifyCustomerID string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).Where("shopify_customer_id = ?", shopifyCustomerID).First(&customer).Error
	if err != nil {
		return nil, translateErr(err, "find customer by storefront id %s", shopifyCustomerID)
	}
	return &customer, nil
}

func (r *customerRepoImpl) Create(ctx context.Context, customer *model.Customer) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(customer).Error
	return translateErr(err, "create customer %s", customer.EmailAddress())
}

func (r *customerRepoImpl) Update(ctx context.Context, customer *model.Customer) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Save(customer).Error
	return translateErr(err, "update customer %d", customer.ID)
}

func (r *customerRepoImpl) ListStoreLinks(ctx context.Context, customerID uint) ([]model.CustomerStoreLink, error) {
	var links []model.CustomerStoreLink
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("id").Find(&links).Error
	if err != nil {
		return nil, translateErr(err, "list store links of customer %d", customerID)
	}
	return links, nil
}

func (r *customerRepoImpl) LinkStore(ctx context.Context, customerID uint, storeID string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}, {Name: "store_id"}},
		DoNothing: true,
	}).Create(&model.CustomerStoreLink{
		CustomerID: customerID,
		StoreID:    storeID,
	}).Error
	return translateErr(err, "link customer %d to store %s", customerID, storeID)
}
