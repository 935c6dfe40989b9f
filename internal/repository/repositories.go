package repository

import "gorm.io/gorm"

// Repositories bundles every repository over one database handle.
type Repositories struct {
	Stores        StoreRepository
	Invoices      InvoiceRepository
	DeliveryNotes DeliveryNoteRepository
	Payments      PaymentEntryRepository
	Customers     CustomerRepository
	Items         ItemRepository
	Ledger        LedgerRepository
	Locks         LockRepository
	Buckets       RateLimitBucketRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Stores:        NewStoreRepository(db),
		Invoices:      NewInvoiceRepository(db),
		DeliveryNotes: NewDeliveryNoteRepository(db),
		Payments:      NewPaymentEntryRepository(db),
		Customers:     NewCustomerRepository(db),
		Items:         NewItemRepository(db),
		Ledger:        NewLedgerRepository(db),
		Locks:         NewLockRepository(db),
		Buckets:       NewRateLimitBucketRepository(db),
	}
}
