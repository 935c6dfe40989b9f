package service

import (
	"context"
	"testing"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/retry"
	"shopify-order-sync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// racingCustomers inserts the customer from another "delivery" right after
// the first lookup misses.
type racingCustomers struct {
	repository.CustomerRepository
	raced bool
}

func (r *racingCustomers) FindByEmail(ctx context.Context, email string) (*model.Customer, error) {
	if !r.raced {
		r.raced = true
		other := &model.Customer{Email: &email, FirstName: "Other"}
		if err := r.CustomerRepository.Create(ctx, other); err != nil {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeNotFound, "customer %s not found", email)
	}
	return r.CustomerRepository.FindByEmail(ctx, email)
}

func TestCustomerSync_ConcurrentCreateReusesRow(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repos := repository.New(db)
	racing := &racingCustomers{CustomerRepository: repos.Customers}

	syncer := &customerSyncer{customers: racing, locks: repos.Locks, lockPolicy: retry.LockPolicy{TTL: time.Second, Poll: time.Millisecond}}
	customer, err := syncer.sync(ctx, testStore(), testOrder())
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.True(t, racing.raced)
	assert.Equal(t, "Other", customer.FirstName)

	var count int64
	require.NoError(t, db.Model(&model.Customer{}).Where("email = ?", "ann@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	links, err := repos.Customers.ListStoreLinks(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
}

func TestCustomerSync_SameEmailTwice(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repos := repository.New(db)
	syncer := &customerSyncer{customers: repos.Customers, locks: repos.Locks, lockPolicy: retry.LockPolicy{TTL: time.Second, Poll: time.Millisecond}}

	first, err := syncer.sync(ctx, testStore(), testOrder())
	require.NoError(t, err)

	order := testOrder()
	order.ID = 1002
	order.Email = " ANN@example.com "
	order.Customer.Email = ""
	second, err := syncer.sync(ctx, testStore(), order)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.Customer{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
