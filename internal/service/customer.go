package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/retry"
)

type customerSyncer struct {
	customers  repository.CustomerRepository
	locks      retry.Locker
	lockPolicy retry.LockPolicy
}

// sync finds or creates the customer of order and links it to store. It
// returns nil when the order carries no customer identity at all.
func (s *customerSyncer) sync(ctx context.Context, store *model.Store, order *model.Order) (*model.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(order.CustomerEmail()))
	var externalID string
	if order.Customer != nil && order.Customer.ID != 0 {
		externalID = strconv.FormatInt(order.Customer.ID, 10)
	}
	if email == "" && externalID == "" {
		return nil, nil
	}

	find := func() (*model.Customer, error) {
		if email != "" {
			return s.customers.FindByEmail(ctx, email)
		}
		return s.customers.FindByShopifyID(ctx, externalID)
	}

	customer, err := find()
	switch {
	case apperror.IsNotFound(err):
		customer = &model.Customer{ShopifyCustomerID: externalID}
		if email != "" {
			customer.Email = &email
		}
		fillCustomer(customer, order)
		err = s.customers.Create(ctx, customer)
		if apperror.IsDuplicate(err) {
			// created by a concurrent delivery
			customer, err = find()
		}
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("find customer: %w", err)
	default:
		if customer.ShopifyCustomerID == "" {
			customer.ShopifyCustomerID = externalID
		}
		fillCustomer(customer, order)
		if err := s.customers.Update(ctx, customer); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}

	s.linkStore(ctx, customer, store.ID)
	return customer, nil
}

// linkStore appends the store link under an advisory lock. A held lock means
// another worker is adding the same link, so the append is skipped.
func (s *customerSyncer) linkStore(ctx context.Context, customer *model.Customer, storeID string) {
	name := fmt.Sprintf("customer-link:%d", customer.ID)
	err := retry.WithLock(ctx, s.locks, s.lockPolicy, name, func(ctx context.Context) error {
		links, err := s.customers.ListStoreLinks(ctx, customer.ID)
		if err != nil {
			return err
		}
		for _, link := range links {
			if link.StoreID == storeID {
				return nil
			}
		}
		return s.customers.LinkStore(ctx, customer.ID, storeID)
	})

	log := logger.Ctx(ctx)
	switch {
	case apperror.IsLockNotAcquired(err):
		log.Info().Uint("customer", customer.ID).Str("store", storeID).Msg("customer link in progress elsewhere, skipped")
	case err != nil:
		log.Warn().Err(err).Uint("customer", customer.ID).Str("store", storeID).Msg("link customer to store")
	}
}

func fillCustomer(c *model.Customer, order *model.Order) {
	if oc := order.Customer; oc != nil {
		setIf(&c.FirstName, oc.FirstName)
		setIf(&c.LastName, oc.LastName)
		setIf(&c.Phone, oc.Phone)
	}
	if a := order.ShippingAddress; a != nil {
		if order.Customer == nil || strings.TrimSpace(order.Customer.FirstName+order.Customer.LastName) == "" {
			setIf(&c.FirstName, a.FirstName)
			setIf(&c.LastName, a.LastName)
		}
		setIf(&c.Address1, a.Address1)
		setIf(&c.Address2, a.Address2)
		setIf(&c.City, a.City)
		setIf(&c.Province, a.Province)
		setIf(&c.Zip, a.Zip)
		setIf(&c.Country, a.Country)
		if c.Phone == "" {
			c.Phone = a.Phone
		}
	}
}

func setIf(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
