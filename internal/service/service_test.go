package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"shopify-order-sync/internal/ledger"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/ratelimit"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/retry"
	"shopify-order-sync/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t        *testing.T
	ctx      context.Context
	deps     *Deps
	repos    *repository.Repositories
	ledger   *ledger.Ledger
	sync     OrderSyncService
	invoices InvoiceService
	cancel   CancellationService
	admin    AdminService
	limiter  *ratelimit.Limiter
}

func noSleep(context.Context, time.Duration) error { return nil }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repos := repository.New(testutil.NewDB(t))
	deps := &Deps{
		Repos:      repos,
		Ledger:     ledger.New(repos.Ledger),
		Retry:      retry.Policy{MaxRetries: 3, Sleep: noSleep},
		LockPolicy: retry.LockPolicy{TTL: time.Second, Poll: time.Millisecond},
	}

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		deps:    deps,
		repos:   repos,
		ledger:  deps.Ledger,
		limiter: ratelimit.New(ratelimit.NewMemoryStore()),
	}
	f.rewire()

	require.NoError(t, repos.Items.Upsert(f.ctx, &model.Item{ItemCode: "TEE-RED", ItemName: "Red Tee", SKU: "TEE-RED-M"}))
	f.saveStore(testStore())
	return f
}

// rewire rebuilds the services after a change to deps.
func (f *fixture) rewire() {
	f.invoices = NewInvoiceService(f.deps)
	f.cancel = NewCancellationService(f.deps)
	f.sync = NewOrderSyncService(f.deps, f.invoices, f.cancel)
	f.admin = NewAdminService(f.deps, f.sync, f.invoices, f.limiter, nil)
}

func (f *fixture) saveStore(store *model.Store) {
	f.t.Helper()
	require.NoError(f.t, f.repos.Stores.Save(f.ctx, store))
}

func testStore() *model.Store {
	return &model.Store{
		ID:                            "S1",
		ShopDomain:                    "s1.myshopify.com",
		SharedSecret:                  "secret",
		Company:                       "Acme",
		CostCenter:                    "Main - AC",
		BankAccount:                   "Bank - AC",
		DefaultSalesTaxAccount:        "Sales Tax - AC",
		DefaultShippingChargesAccount: "Shipping - AC",
		CreateDeliveryNote:            true,
		SubmitOnPaid:                  true,
	}
}

func testOrder() *model.Order {
	return &model.Order{
		ID:              1001,
		Name:            "#1001",
		Email:           "ann@example.com",
		FinancialStatus: "pending",
		CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		SourceName:      "web",
		Gateway:         "shopify_payments",
		Customer:        &model.OrderCustomer{ID: 77, Email: "ann@example.com", FirstName: "Ann", LastName: "Lee"},
		ShippingAddress: &model.Address{
			FirstName: "Ann",
			LastName:  "Lee",
			Address1:  "1 Main St",
			City:      "Austin",
			Province:  "TX",
			Zip:       "78701",
			Country:   "US",
		},
		LineItems: []model.LineItem{{
			ID:       1,
			SKU:      "TEE-RED-M",
			Title:    "Red Tee",
			Quantity: 2,
			Price:    decimal.RequireFromString("25.00"),
			TaxLines: []model.TaxLine{{
				Title: "State Tax",
				Price: decimal.RequireFromString("4.00"),
				Rate:  decimal.RequireFromString("0.08"),
			}},
		}},
		ShippingLines: []model.ShippingLine{{
			Title: "Standard",
			Code:  "STD",
			Price: decimal.RequireFromString("5.00"),
		}},
	}
}

func payload(t *testing.T, order *model.Order) []byte {
	t.Helper()
	b, err := json.Marshal(order)
	require.NoError(t, err)
	return b
}

// deliver records the event on the ledger and processes it.
func (f *fixture) deliver(eventType model.EventType, order *model.Order) (*model.LedgerEntry, Outcome) {
	f.t.Helper()

	entry, err := f.ledger.Create(f.ctx, eventType, "S1", order.OrderID(), payload(f.t, order), "")
	require.NoError(f.t, err)

	outcome, err := f.sync.Process(f.ctx, entry)
	require.NoError(f.t, err)
	return entry, outcome
}

func (f *fixture) entry(id string) *model.LedgerEntry {
	f.t.Helper()
	entry, err := f.ledger.Get(f.ctx, id)
	require.NoError(f.t, err)
	return entry
}

func (f *fixture) invoiceFor(orderID string) *model.Invoice {
	f.t.Helper()
	inv, err := f.repos.Invoices.FindActiveByOrder(f.ctx, "S1", orderID)
	require.NoError(f.t, err)
	return inv
}

// cascadeLog records the order in which documents reach Cancelled.
type cascadeLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *cascadeLog) add(step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
}

type recordingNotes struct {
	repository.DeliveryNoteRepository
	log *cascadeLog
}

func (r recordingNotes) Update(ctx context.Context, note *model.DeliveryNote) error {
	err := r.DeliveryNoteRepository.Update(ctx, note)
	if err == nil && note.Status == model.DocCancelled {
		r.log.add("delivery_note")
	}
	return err
}

type recordingPayments struct {
	repository.PaymentEntryRepository
	log *cascadeLog
}

func (r recordingPayments) Update(ctx context.Context, payment *model.PaymentEntry) error {
	err := r.PaymentEntryRepository.Update(ctx, payment)
	if err == nil && payment.Status == model.DocCancelled {
		r.log.add("payment")
	}
	return err
}

type recordingInvoices struct {
	repository.InvoiceRepository
	log *cascadeLog
}

func (r recordingInvoices) Update(ctx context.Context, invoice *model.Invoice) error {
	err := r.InvoiceRepository.Update(ctx, invoice)
	if err == nil && invoice.Status == model.DocCancelled {
		r.log.add("invoice")
	}
	return err
}

type fakeShipStation struct {
	mu        sync.Mutex
	cancelled []string
	err       error
}

func (f *fakeShipStation) CancelShipment(_ context.Context, shipmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, shipmentID)
	return f.err
}

type fakeShopify struct {
	orders map[string]*model.Order
}

func (f *fakeShopify) GetOrder(_ context.Context, _ *model.Store, orderID string) (*model.Order, []byte, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil, context.DeadlineExceeded
	}
	raw, err := json.Marshal(order)
	return order, raw, err
}

type panickingStores struct {
	repository.StoreRepository
}

func (panickingStores) FindByID(context.Context, string) (*model.Store, error) {
	panic("store lookup exploded")
}
