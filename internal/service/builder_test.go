package service

import (
	"errors"
	"strings"
	"testing"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/routing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAssemble_TaxesIncludedAndDiscounts(t *testing.T) {
	store := testStore()
	order := &model.Order{
		Name:          "#42",
		TaxesIncluded: true,
		LineItems: []model.LineItem{{
			ID:                  1,
			SKU:                 "TEE-RED-M",
			Title:               "Red Tee",
			Quantity:            2,
			Price:               dec("30.00"),
			DiscountAllocations: []model.DiscountAllocation{{Amount: dec("6.00")}},
			TaxLines:            []model.TaxLine{{Title: "VAT", Price: dec("3.00"), Rate: dec("0.05")}},
		}},
		ShippingLines: []model.ShippingLine{{
			Title:    "Express",
			Price:    dec("10.00"),
			TaxLines: []model.TaxLine{{Title: "VAT", Price: dec("0.50"), Rate: dec("0.05")}},
		}},
	}
	lines := []resolvedLine{{line: &order.LineItems[0], item: &model.Item{ItemCode: "TEE-RED"}}}
	d := &routing.Decision{CostCenter: "Main - AC", BankAccount: "Bank - AC"}

	body, err := (&invoiceBuilder{}).assemble(store, order, lines, d)
	require.NoError(t, err)

	require.Len(t, body.Items, 1)
	item := body.Items[0]
	assert.True(t, item.Rate.Equal(dec("25.5")), item.Rate.String())
	assert.True(t, item.Amount.Equal(dec("51")), item.Amount.String())
	assert.True(t, item.Discount.Equal(dec("6")))
	assert.Equal(t, "Main - AC", item.CostCenter)

	// both VAT rows post to the default tax account and are merged
	require.Len(t, body.Taxes, 2)
	assert.Equal(t, "Sales Tax - AC", body.Taxes[0].AccountHead)
	assert.Equal(t, "VAT - 5.00%", body.Taxes[0].Description)
	assert.True(t, body.Taxes[0].TaxAmount.Equal(dec("3.5")), body.Taxes[0].TaxAmount.String())
	assert.Equal(t, "Shipping - AC", body.Taxes[1].AccountHead)
	assert.True(t, body.Taxes[1].TaxAmount.Equal(dec("9.5")), body.Taxes[1].TaxAmount.String())

	assert.True(t, body.NetTotal.Equal(dec("51")))
	assert.True(t, body.TotalTaxes.Equal(dec("13")))
	assert.True(t, body.GrandTotal.Equal(dec("64")))
}

func TestAssemble_ShippingAsItem(t *testing.T) {
	store := testStore()
	store.AddShippingAsItem = true
	store.ShippingItemCode = "SHIPPING"

	order := &model.Order{
		LineItems: []model.LineItem{{ID: 1, SKU: "TEE-RED-M", Quantity: 1, Price: dec("20")}},
		ShippingLines: []model.ShippingLine{{
			Title:               "Standard",
			Code:                "STD",
			Price:               dec("5"),
			DiscountAllocations: []model.DiscountAllocation{{Amount: dec("1")}},
		}},
	}
	lines := []resolvedLine{{line: &order.LineItems[0], item: &model.Item{ItemCode: "TEE-RED"}}}

	body, err := (&invoiceBuilder{}).assemble(store, order, lines, &routing.Decision{})
	require.NoError(t, err)

	require.Len(t, body.Items, 2)
	assert.Equal(t, "SHIPPING", body.Items[1].ItemCode)
	assert.Equal(t, "shipping:STD", body.Items[1].ExternalLineID)
	assert.True(t, body.Items[1].Amount.Equal(dec("4")))
	assert.Empty(t, body.Taxes)
	assert.True(t, body.GrandTotal.Equal(dec("24")))
}

func TestAssemble_MissingTaxAccountIsConfiguration(t *testing.T) {
	store := testStore()
	store.DefaultSalesTaxAccount = ""

	order := &model.Order{
		LineItems: []model.LineItem{{
			ID: 1, Quantity: 1, Price: dec("10"),
			TaxLines: []model.TaxLine{{Title: "GST", Price: dec("1"), Rate: dec("0.1")}},
		}},
	}
	lines := []resolvedLine{{line: &order.LineItems[0], item: &model.Item{ItemCode: "TEE-RED"}}}

	_, err := (&invoiceBuilder{}).assemble(store, order, lines, &routing.Decision{})
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}

func TestDiffLines(t *testing.T) {
	stored := []model.InvoiceItem{
		{ItemCode: "A", ExternalLineID: "variant:1", Qty: 1, Rate: dec("10")},
		{ItemCode: "B", ExternalLineID: "variant:2", Qty: 1, Rate: dec("5")},
		{ItemCode: "C", Qty: 2, Rate: dec("3")},
	}
	fresh := []model.InvoiceItem{
		{ItemCode: "A", ExternalLineID: "variant:1", Qty: 2, Rate: dec("10.004")},
		{ItemCode: "C", Qty: 2, Rate: dec("4")},
		{ItemCode: "D", ExternalLineID: "variant:4", Qty: 1, Rate: dec("1")},
	}

	assert.Equal(t, []string{
		"line variant:1 qty 1 -> 2",
		"line item:C rate 3.00 -> 4.00",
		"line variant:4 added (qty 1)",
		"line variant:2 removed",
	}, diffLines(stored, fresh))
}

func TestOutcomeLedgerMapping(t *testing.T) {
	cfg := Failure(apperror.New(apperror.CodeConfiguration, "no bank account"))
	assert.Equal(t, OutcomeConfigError, cfg.Kind)
	assert.Equal(t, model.LedgerError, cfg.LedgerStatus())
	assert.True(t, strings.HasPrefix(cfg.LedgerMessage(), "configuration error: "), cfg.LedgerMessage())
	assert.Contains(t, cfg.LedgerMessage(), "no bank account")

	fail := Failure(errors.New("boom"))
	assert.Equal(t, OutcomeFailure, fail.Kind)
	assert.Equal(t, "boom", fail.LedgerMessage())

	assert.Equal(t, model.LedgerSuccess, Success("ok").LedgerStatus())
	assert.Equal(t, model.LedgerInvalid, Invalid("dup").LedgerStatus())
	assert.Equal(t, model.LedgerIncomplete, Incomplete("no address").LedgerStatus())
	assert.Equal(t, model.LedgerSkipped, Skipped("old").LedgerStatus())
	assert.Equal(t, "SINV-1", Success("ok").WithInvoice("SINV-1").Invoice)
}
