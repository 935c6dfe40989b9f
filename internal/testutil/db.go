package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"shopify-order-sync/internal/client"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ordersync_test_%d?mode=memory&cache=shared&_foreign_keys=1", dbSeq.Add(1))
	db, err := client.InitDB("sqlite", dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
