package service

import (
	"time"

	"shopify-order-sync/internal/client"
	"shopify-order-sync/internal/ledger"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/retry"
)

// Deps carries the collaborators shared by the services.
type Deps struct {
	Repos      *repository.Repositories
	Ledger     *ledger.Ledger
	Retry      retry.Policy
	LockPolicy retry.LockPolicy
	// ShipStation may be nil; shipment cancels are then skipped.
	ShipStation client.ShipStationClient
	// Shopify may be nil; incomplete rechecks then use stored payloads.
	Shopify client.ShopifyClient
	Now     func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// Event is one ledger entry with its store and decoded order.
type Event struct {
	Entry *model.LedgerEntry
	Store *model.Store
	Order *model.Order
}

func (ev *Event) entryID() string {
	if ev.Entry == nil {
		return ""
	}
	return ev.Entry.ID
}
