package repository

import (
	"context"
	"testing"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemRepository_Finders(t *testing.T) {
	ctx := context.Background()
	repo := NewItemRepository(testutil.NewDB(t))

	require.NoError(t, repo.Upsert(ctx, &model.Item{
		ItemCode: "TEE-RED-M",
		ItemName: "Red Tee M",
		SKU:      "RT-M",
		Barcodes: []model.ItemBarcode{{Barcode: "0012345"}},
	}))
	require.NoError(t, repo.Upsert(ctx, &model.Item{ItemCode: "OLD", SKU: "OLD-SKU", Disabled: true}))
	require.NoError(t, repo.LinkStore(ctx, &model.ItemStoreLink{ItemCode: "TEE-RED-M", StoreID: "S1", ShopifyVariantID: "555"}))

	item, err := repo.FindByStoreLink(ctx, "S1", "555", "")
	require.NoError(t, err)
	assert.Equal(t, "TEE-RED-M", item.ItemCode)

	_, err = repo.FindByStoreLink(ctx, "S2", "555", "")
	assert.True(t, apperror.IsNotFound(err))

	item, err = repo.FindBySKU(ctx, "RT-M")
	require.NoError(t, err)
	assert.Equal(t, "TEE-RED-M", item.ItemCode)

	item, err = repo.FindByBarcode(ctx, "0012345")
	require.NoError(t, err)
	assert.Equal(t, "TEE-RED-M", item.ItemCode)

	item, err = repo.FindByName(ctx, "Red Tee M")
	require.NoError(t, err)
	assert.Equal(t, "TEE-RED-M", item.ItemCode)

	_, err = repo.FindBySKU(ctx, "OLD-SKU")
	assert.True(t, apperror.IsNotFound(err))
}
