package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shopify-order-sync/internal/client"
	"shopify-order-sync/internal/dto"
	"shopify-order-sync/internal/ledger"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storesYAML = `stores:
  - id: S1
    shop_domain: s1.myshopify.com
    shared_secret: secret
    company: Acme
    cost_center: Main - AC
    bank_account: Bank - AC
    default_sales_tax_account: Sales Tax - AC
    default_shipping_charges_account: Shipping - AC
    create_delivery_note: true
    submit_on_paid: true
    payment_gateways:
      - name: shopify_payments
        bank_account: Stripe - AC
`

const itemsYAML = `items:
  - code: TEE-RED
    name: Red Tee
    sku: TEE-RED-M
    barcodes: ["0001"]
    links:
      - store: S1
        product_id: "500"
        variant_id: "600"
`

type harness struct {
	t      *testing.T
	dbPath string
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Setenv("RATE_LIMIT_STORE", "memory")
	t.Setenv("SHIPSTATION_API_KEY", "")
	dir := t.TempDir()
	return &harness{t: t, dir: dir, dbPath: filepath.Join(dir, "ordersync.db")}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()

	cmd, o := newRootCommand()
	defer o.close()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--db", h.dbPath, "--driver", "sqlite", "--log-level", "warn"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (h *harness) seed() {
	h.mustRun("store", "import", "--file", h.writeFile("stores.yaml", storesYAML))
	h.mustRun("item", "import", "--file", h.writeFile("items.yaml", itemsYAML))
}

// queueEntry records a webhook delivery directly in the ledger.
func (h *harness) queueEntry(eventType model.EventType, order *model.Order) string {
	h.t.Helper()

	db, err := client.InitDB("sqlite", h.dbPath)
	require.NoError(h.t, err)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	body, err := json.Marshal(order)
	require.NoError(h.t, err)

	entry, err := ledger.New(repository.New(db).Ledger).Create(context.Background(), eventType, "S1", order.OrderID(), body, "req-1")
	require.NoError(h.t, err)
	return entry.ID
}

func completeOrder() *model.Order {
	return &model.Order{
		ID:              2001,
		Name:            "#2001",
		Email:           "ann@example.com",
		FinancialStatus: "pending",
		CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Gateway:         "shopify_payments",
		Customer:        &model.OrderCustomer{ID: 77, Email: "ann@example.com", FirstName: "Ann", LastName: "Lee"},
		ShippingAddress: &model.Address{
			FirstName: "Ann",
			LastName:  "Lee",
			Address1:  "1 Main St",
			City:      "Austin",
			Zip:       "78701",
			Country:   "US",
		},
		LineItems: []model.LineItem{{
			ID:       1,
			SKU:      "TEE-RED-M",
			Title:    "Red Tee",
			Quantity: 1,
			Price:    decimal.RequireFromString("20.00"),
		}},
	}
}

func TestStoreImportAndList(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("store", "import", "--file", h.writeFile("stores.yaml", storesYAML))
	assert.Contains(t, out, "saved store S1")

	out = h.mustRun("store", "list", "--format", "json")
	var stores []model.Store
	require.NoError(t, json.Unmarshal([]byte(out), &stores))
	require.Len(t, stores, 1)
	assert.Equal(t, "s1.myshopify.com", stores[0].ShopDomain)
	require.Len(t, stores[0].GatewayMappings, 1)
	assert.Equal(t, "Stripe - AC", stores[0].GatewayMappings[0].BankAccount)
}

func TestStoreImportRejectsMissingDomain(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("store", "import", "--file", h.writeFile("bad.yaml", "stores:\n  - id: S9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shop_domain")
}

func TestItemImportIsRepeatable(t *testing.T) {
	h := newHarness(t)
	path := h.writeFile("items.yaml", itemsYAML)

	out := h.mustRun("item", "import", "--file", path)
	assert.Contains(t, out, "upserted 1 items, created 1 store links")

	out = h.mustRun("item", "import", "--file", path)
	assert.Contains(t, out, "created 0 store links")
}

func TestReprocessAndBulkSubmit(t *testing.T) {
	h := newHarness(t)
	h.seed()

	id := h.queueEntry(model.EventOrderCreated, completeOrder())

	out := h.mustRun("reprocess", id, "-o", "json")
	var resp dto.ReprocessResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, id, resp.EntryID)
	assert.Nil(t, resp.RetryOf)
	assert.Equal(t, string(model.LedgerSuccess), resp.Status)
	require.NotEmpty(t, resp.Invoice)

	out = h.mustRun("bulk-submit", resp.Invoice)
	assert.Contains(t, out, resp.Invoice+": submitted")

	// a second submit reports the invoice and fails the command
	out, err := h.run("bulk-submit", resp.Invoice)
	require.Error(t, err)
	assert.Contains(t, out, "already submitted")

	out = h.mustRun("summary", "--store", "S1", "-o", "json")
	var summary service.OrderSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "S1", summary.StoreID)
	assert.Zero(t, summary.DraftInvoices)
}

func TestReprocessFinalEntryCreatesRetry(t *testing.T) {
	h := newHarness(t)
	h.seed()

	id := h.queueEntry(model.EventOrderCreated, completeOrder())
	h.mustRun("reprocess", id)

	out := h.mustRun("reprocess", id, "-o", "json")
	var resp dto.ReprocessResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEqual(t, id, resp.EntryID)
	require.NotNil(t, resp.RetryOf)
	assert.Equal(t, id, *resp.RetryOf)
	// the invoice already exists
	assert.Equal(t, string(model.LedgerInvalid), resp.Status)
}

func TestRecheckIncomplete(t *testing.T) {
	h := newHarness(t)
	h.seed()

	order := completeOrder()
	order.ShippingAddress = nil
	id := h.queueEntry(model.EventOrderCreated, order)

	out := h.mustRun("reprocess", id)
	assert.Contains(t, out, "status:  "+string(model.LedgerIncomplete))

	out = h.mustRun("recheck-incomplete", "--store", "S1", "-o", "json")
	var result service.RecheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 1, result.StillIncomplete)
	assert.Zero(t, result.Resolved)

	_, err := h.run("recheck-incomplete")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--store is required")
}

func TestHealthText(t *testing.T) {
	h := newHarness(t)
	h.seed()

	out := h.mustRun("health", "--store", "S1")
	assert.Contains(t, out, "status:       healthy")
	assert.Contains(t, out, "last success: never")
}

func TestRateLimitReset(t *testing.T) {
	h := newHarness(t)
	h.seed()

	out := h.mustRun("rate-limit", "reset", "--store", "S1", "--api", "graphql")
	assert.Contains(t, out, "reset graphql bucket of store S1")

	_, err := h.run("rate-limit", "reset", "--store", "S1", "--api", "soap")
	require.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	h := newHarness(t)
	t.Setenv("ADMIN_JWT_SECRET", "")

	_, err := h.run("token")
	require.Error(t, err)

	t.Setenv("ADMIN_JWT_SECRET", "s3cret")
	out := h.mustRun("token", "--subject", "ops", "-o", "json")

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(result["token"], claims, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestUnknownFormat(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("token", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
