package service

import (
	"testing"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReprocess_FinishedEntryGetsLinkedRetry(t *testing.T) {
	f := newFixture(t)

	store := testStore()
	store.BankAccount = ""
	f.saveStore(store)

	failed, outcome := f.deliver(model.EventOrderCreated, testOrder())
	require.Equal(t, OutcomeConfigError, outcome.Kind)

	f.saveStore(testStore())

	retried, outcome, err := f.admin.Reprocess(f.ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind, outcome.Message)
	assert.NotEqual(t, failed.ID, retried.ID)
	require.NotNil(t, retried.RetryOf)
	assert.Equal(t, failed.ID, *retried.RetryOf)
	assert.NotEmpty(t, retried.RequestID)

	assert.Equal(t, model.LedgerError, f.entry(failed.ID).Status)
	assert.Equal(t, model.LedgerSuccess, f.entry(retried.ID).Status)
}

func TestReprocess_IncompleteEntryIsReenteredInPlace(t *testing.T) {
	f := newFixture(t)

	order := testOrder()
	order.ShippingAddress = nil
	held, outcome := f.deliver(model.EventOrderCreated, order)
	require.Equal(t, OutcomeIncomplete, outcome.Kind)

	entry, outcome, err := f.admin.Reprocess(f.ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, held.ID, entry.ID)
	assert.Equal(t, OutcomeIncomplete, outcome.Kind)
	assert.Equal(t, model.LedgerIncomplete, f.entry(held.ID).Status)
}

func TestRecheckIncomplete_UsesFreshPayloads(t *testing.T) {
	f := newFixture(t)

	store := testStore()
	store.AccessToken = "shpat_test"
	f.saveStore(store)

	first := testOrder()
	first.ID = 2001
	first.ShippingAddress = nil
	e1, outcome := f.deliver(model.EventOrderCreated, first)
	require.Equal(t, OutcomeIncomplete, outcome.Kind)

	second := testOrder()
	second.ID = 2002
	second.ShippingAddress = nil
	e2, outcome := f.deliver(model.EventOrderCreated, second)
	require.Equal(t, OutcomeIncomplete, outcome.Kind)

	fixed := testOrder()
	fixed.ID = 2001
	f.deps.Shopify = &fakeShopify{orders: map[string]*model.Order{"2001": fixed}}

	result, err := f.admin.RecheckIncomplete(f.ctx, "S1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, 1, result.StillIncomplete)
	assert.Equal(t, 0, result.Failed)

	assert.Equal(t, model.LedgerSuccess, f.entry(e1.ID).Status)
	assert.Equal(t, model.LedgerIncomplete, f.entry(e2.ID).Status)
	f.invoiceFor("2001")
}

func TestFixHollowInvoices(t *testing.T) {
	f := newFixture(t)

	order := testOrder()
	_, err := f.ledger.Create(f.ctx, model.EventOrderCreated, "S1", order.OrderID(), payload(t, order), "")
	require.NoError(t, err)

	hollow := &model.Invoice{StoreID: "S1", ShopifyOrderID: order.OrderID(), FinancialStatus: "pending"}
	require.NoError(t, f.repos.Invoices.Create(f.ctx, hollow))

	result, err := f.admin.FixHollowInvoices(f.ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fixed)
	assert.Equal(t, 0, result.Errors)

	inv := f.invoiceFor("1001")
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "TEE-RED", inv.Items[0].ItemCode)
	assert.True(t, inv.GrandTotal.IsPositive())

	_, err = f.admin.ResyncInvoiceItems(f.ctx, inv.Name)
	assert.True(t, apperror.IsValidation(err))
}

func TestOrderSummaryAndHealth(t *testing.T) {
	f := newFixture(t)

	_, outcome := f.deliver(model.EventOrderCreated, testOrder())
	require.Equal(t, OutcomeSuccess, outcome.Kind, outcome.Message)

	held := testOrder()
	held.ID = 1002
	held.ShippingAddress = nil
	f.deliver(model.EventOrderCreated, held)

	paid := testOrder()
	paid.ID = 1003
	paid.FinancialStatus = "paid"
	_, outcome = f.deliver(model.EventOrderCreated, paid)
	require.Equal(t, OutcomeSuccess, outcome.Kind, outcome.Message)

	summary, err := f.admin.OrderSummary(f.ctx, "S1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.IncompleteOrders)
	assert.EqualValues(t, 1, summary.DraftInvoices)
	assert.EqualValues(t, 1, summary.SubmittedToday)
	assert.EqualValues(t, 0, summary.PendingDelivery)

	report, err := f.admin.IntegrationHealth(f.ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, HealthHealthy, report.Status)
	assert.NotNil(t, report.LastSuccess)
	assert.EqualValues(t, 0, report.Errors24h)
}

func TestIntegrationHealth_CriticalWithoutSuccess(t *testing.T) {
	f := newFixture(t)

	store := testStore()
	store.BankAccount = ""
	f.saveStore(store)
	f.deliver(model.EventOrderCreated, testOrder())

	report, err := f.admin.IntegrationHealth(f.ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, HealthCritical, report.Status)
	assert.EqualValues(t, 1, report.Errors24h)
	assert.Nil(t, report.LastSuccess)
}

func TestResetRateLimit(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.admin.ResetRateLimit(f.ctx, "S1", model.APIRest))

	err := f.admin.ResetRateLimit(f.ctx, "S1", model.APIType("soap"))
	assert.True(t, apperror.IsValidation(err))
}
