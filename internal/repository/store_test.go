package repository

import (
	"context"
	"testing"

	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRepository_SaveReplacesMappings(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepository(testutil.NewDB(t))

	store := &model.Store{
		ID:          "S1",
		ShopDomain:  "s1.myshopify.com",
		BankAccount: "Bank - S1",
		ChannelMappings: []model.SalesChannelMapping{
			{SalesChannelName: "web", CostCenter: "Online - S1"},
			{SalesChannelName: "pos", CostCenter: "Retail - S1"},
		},
		GatewayMappings: []model.PaymentGatewayMapping{{GatewayName: "afterpay", BankAccount: "Afterpay Clearing"}},
	}
	require.NoError(t, repo.Save(ctx, store))

	store.ChannelMappings = store.ChannelMappings[:1]
	store.CostCenter = "Main - S1"
	require.NoError(t, repo.Save(ctx, store))

	found, err := repo.FindByDomain(ctx, "s1.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "Main - S1", found.CostCenter)
	require.Len(t, found.ChannelMappings, 1)
	assert.Equal(t, "web", found.ChannelMappings[0].SalesChannelName)
	require.Len(t, found.GatewayMappings, 1)
}
