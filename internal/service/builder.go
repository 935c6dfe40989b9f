package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/routing"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type resolvedLine struct {
	line *model.LineItem
	item *model.Item
}

// invoiceBody is the part of an invoice derived from the order payload.
type invoiceBody struct {
	Items      []model.InvoiceItem
	Taxes      []model.InvoiceTax
	NetTotal   decimal.Decimal
	TotalTaxes decimal.Decimal
	GrandTotal decimal.Decimal
	// Unmatched lists line items no catalog item could be found for.
	Unmatched []string
}

type invoiceBuilder struct {
	items repository.ItemRepository
}

type itemFinder func(ctx context.Context, key string) (*model.Item, error)

// resolveItem walks the lookup chain for one line item. It returns nil
// without error when nothing matches.
func (b *invoiceBuilder) resolveItem(ctx context.Context, storeID string, li *model.LineItem) (*model.Item, error) {
	if li.ProductExists && (li.VariantID != nil || li.ProductID != nil) {
		item, err := b.items.FindByStoreLink(ctx, storeID, idString(li.VariantID), idString(li.ProductID))
		if err == nil {
			return item, nil
		}
		if !apperror.IsNotFound(err) {
			return nil, err
		}
	}

	sku := strings.TrimSpace(li.SKU)
	if sku == "" {
		return nil, nil
	}

	chain := []itemFinder{
		b.items.FindByCode,
		b.items.FindBySKU,
		b.items.FindByBarcode,
		b.items.FindByName,
	}
	for _, find := range chain {
		item, err := find(ctx, sku)
		if err == nil {
			return item, nil
		}
		if !apperror.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

// resolveLines resolves every line item with a positive quantity. Zero
// resolved lines is an error; partially resolved orders list the rest in
// invoiceBody.Unmatched.
func (b *invoiceBuilder) resolveLines(ctx context.Context, store *model.Store, order *model.Order) ([]resolvedLine, []string, error) {
	var (
		lines     []resolvedLine
		unmatched []string
	)
	for i := range order.LineItems {
		li := &order.LineItems[i]
		if li.Quantity <= 0 {
			continue
		}

		item, err := b.resolveItem(ctx, store.ID, li)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve item for line %d: %w", li.ID, err)
		}
		if item == nil {
			unmatched = append(unmatched, describeLine(li))
			continue
		}
		lines = append(lines, resolvedLine{line: li, item: item})
	}

	if len(lines) == 0 {
		return nil, unmatched, fmt.Errorf("no items could be matched for order %s: %s",
			order.Name, strings.Join(unmatched, ", "))
	}
	return lines, unmatched, nil
}

// assemble prices the resolved lines and builds the tax and shipping rows.
func (b *invoiceBuilder) assemble(store *model.Store, order *model.Order, lines []resolvedLine, d *routing.Decision) (*invoiceBody, error) {
	body := &invoiceBody{}

	for _, rl := range lines {
		li := rl.line
		qty := decimal.NewFromInt(int64(li.Quantity))
		discount := li.Discount()

		deduct := discount
		if order.TaxesIncluded {
			deduct = deduct.Add(li.Tax())
		}
		rate := li.Price.Sub(deduct.Div(qty)).Round(4)

		name := li.Name
		if name == "" {
			name = li.Title
		}
		body.Items = append(body.Items, model.InvoiceItem{
			ItemCode:       rl.item.ItemCode,
			ItemName:       name,
			ExternalLineID: li.Fingerprint(rl.item.ItemCode),
			Qty:            li.Quantity,
			Rate:           rate,
			Amount:         rate.Mul(qty).Round(2),
			Discount:       discount,
			CostCenter:     d.CostCenter,
		})

		for _, tax := range li.TaxLines {
			row, err := b.taxRow(store, d, tax)
			if err != nil {
				return nil, err
			}
			body.Taxes = append(body.Taxes, row)
		}
	}

	for i := range order.ShippingLines {
		if err := b.addShipping(store, order, d, &order.ShippingLines[i], body); err != nil {
			return nil, err
		}
	}

	body.Taxes = consolidateTaxes(body.Taxes)

	for _, it := range body.Items {
		body.NetTotal = body.NetTotal.Add(it.Amount)
	}
	for _, tx := range body.Taxes {
		body.TotalTaxes = body.TotalTaxes.Add(tx.TaxAmount)
	}
	body.GrandTotal = body.NetTotal.Add(body.TotalTaxes)
	return body, nil
}

func (b *invoiceBuilder) taxRow(store *model.Store, d *routing.Decision, tax model.TaxLine) (model.InvoiceTax, error) {
	account, err := d.TaxAccountFor(store, tax.Title)
	if err != nil {
		return model.InvoiceTax{}, err
	}
	return model.InvoiceTax{
		AccountHead:     account,
		Description:     fmt.Sprintf("%s - %s%%", tax.Title, tax.Rate.Mul(hundred).StringFixed(2)),
		TaxAmount:       tax.Price,
		CostCenter:      d.CostCenter,
		AccountingClass: d.TaxAccountingClass,
	}, nil
}

func (b *invoiceBuilder) addShipping(store *model.Store, order *model.Order, d *routing.Decision, sl *model.ShippingLine, body *invoiceBody) error {
	if !sl.Price.IsZero() {
		amount := sl.Price.Sub(sl.Discount())
		if order.TaxesIncluded {
			amount = amount.Sub(sl.Tax())
		}

		if store.AddShippingAsItem && store.ShippingItemCode != "" {
			body.Items = append(body.Items, model.InvoiceItem{
				ItemCode:       store.ShippingItemCode,
				ItemName:       sl.Title,
				ExternalLineID: "shipping:" + shippingKey(sl),
				Qty:            1,
				Rate:           amount,
				Amount:         amount,
				CostCenter:     d.CostCenter,
			})
		} else {
			account, err := d.ShippingAccountFor(store, sl.Title)
			if err != nil {
				return err
			}
			body.Taxes = append(body.Taxes, model.InvoiceTax{
				AccountHead:     account,
				Description:     sl.Title,
				TaxAmount:       amount,
				CostCenter:      d.CostCenter,
				AccountingClass: d.ShippingAccountingClass,
			})
		}
	}

	for _, tax := range sl.TaxLines {
		row, err := b.taxRow(store, d, tax)
		if err != nil {
			return err
		}
		body.Taxes = append(body.Taxes, row)
	}
	return nil
}

// consolidateTaxes merges rows posting to the same account, keeping the
// first row's description and the order of first appearance.
func consolidateTaxes(rows []model.InvoiceTax) []model.InvoiceTax {
	var out []model.InvoiceTax
	index := make(map[string]int)
	for _, row := range rows {
		if i, ok := index[row.AccountHead]; ok {
			out[i].TaxAmount = out[i].TaxAmount.Add(row.TaxAmount)
			continue
		}
		index[row.AccountHead] = len(out)
		out = append(out, row)
	}
	return out
}

// applyBody copies order state and a freshly built body onto a draft.
// Posting and due dates are kept.
func applyBody(inv *model.Invoice, order *model.Order, d *routing.Decision, body *invoiceBody, now time.Time) {
	inv.Items = body.Items
	inv.Taxes = body.Taxes
	inv.NetTotal = body.NetTotal
	inv.TotalTaxes = body.TotalTaxes
	inv.GrandTotal = body.GrandTotal
	inv.OutstandingAmount = body.GrandTotal

	inv.FinancialStatus = order.FinancialStatus
	inv.FulfillmentStatus = order.FulfillmentOrDefault()
	inv.Remarks = order.Note
	inv.Tags = order.Tags
	inv.PaymentGateway = d.Gateway
	inv.SalesChannel = order.SourceName
	inv.CostCenter = d.CostCenter
	inv.BankAccount = d.BankAccount
	if isPaid(order.FinancialStatus) && inv.PaymentCaptureDate == nil {
		inv.PaymentCaptureDate = &now
	}
	if inv.DueDate.Before(inv.PostingDate) {
		inv.DueDate = inv.PostingDate
	}
}

func newInvoice(store *model.Store, order *model.Order, customer *model.Customer, d *routing.Decision, body *invoiceBody, now time.Time) *model.Invoice {
	posting := orderDate(order, now)
	inv := &model.Invoice{
		StoreID:            store.ID,
		ShopifyOrderID:     order.OrderID(),
		ShopifyOrderNumber: orderNumber(order),
		Status:             model.DocDraft,
		PostingDate:        posting,
		DueDate:            posting,
	}
	if customer != nil {
		inv.CustomerID = customer.ID
	}
	applyBody(inv, order, d, body, now)
	return inv
}

func orderDate(order *model.Order, now time.Time) time.Time {
	t := order.CreatedAt
	if t.IsZero() {
		t = now
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func orderNumber(order *model.Order) string {
	if order.Name != "" {
		return order.Name
	}
	if order.OrderNumber != 0 {
		return strconv.FormatInt(order.OrderNumber, 10)
	}
	return order.OrderID()
}

func isPaid(financialStatus string) bool {
	return strings.EqualFold(strings.TrimSpace(financialStatus), "paid")
}

func idString(id *int64) string {
	if id == nil || *id == 0 {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func describeLine(li *model.LineItem) string {
	title := li.Title
	if title == "" {
		title = li.Name
	}
	if li.SKU != "" {
		return fmt.Sprintf("%s (sku %s)", title, li.SKU)
	}
	return title
}

func shippingKey(sl *model.ShippingLine) string {
	if sl.Code != "" {
		return sl.Code
	}
	return sl.Title
}
