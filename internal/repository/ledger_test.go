package repository

import (
	"context"
	"testing"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_UpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(testutil.NewDB(t))

	entry := &model.LedgerEntry{ID: "e1", EventType: model.EventOrderCreated, StoreID: "S1", ShopifyOrderID: "1001", Status: model.LedgerQueued}
	require.NoError(t, repo.Create(ctx, entry))

	require.NoError(t, repo.UpdateStatus(ctx, "e1", model.LedgerQueued, model.LedgerSuccess, "created SINV-1"))

	err := repo.UpdateStatus(ctx, "e1", model.LedgerQueued, model.LedgerError, "late writer")
	require.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	stored, err := repo.FindByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, model.LedgerSuccess, stored.Status)
	assert.Equal(t, "created SINV-1", stored.Message)
}

func TestLedgerRepository_CountsAndLastSuccess(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(testutil.NewDB(t))

	last, err := repo.LastSuccess(ctx, "S1")
	require.NoError(t, err)
	assert.Nil(t, last)

	for i, status := range []model.LedgerStatus{model.LedgerSuccess, model.LedgerError, model.LedgerError, model.LedgerQueued} {
		require.NoError(t, repo.Create(ctx, &model.LedgerEntry{
			ID:        string(rune('a' + i)),
			EventType: model.EventOrderCreated,
			StoreID:   "S1",
			Status:    status,
		}))
	}

	counts, err := repo.CountByStatusSince(ctx, "S1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.LedgerSuccess])
	assert.Equal(t, int64(2), counts[model.LedgerError])
	assert.Equal(t, int64(1), counts[model.LedgerQueued])

	last, err = repo.LastSuccess(ctx, "S1")
	require.NoError(t, err)
	assert.NotNil(t, last)
}
