package service

import (
	"fmt"
	"sort"
	"strings"

	"shopify-order-sync/internal/model"

	"github.com/shopspring/decimal"
)

var totalTolerance = decimal.RequireFromString("0.01")

// diffInvoice lists the differences between a stored invoice and the invoice
// the current order payload would produce. Lines are matched on their
// external line id.
func diffInvoice(inv *model.Invoice, order *model.Order, body *invoiceBody) []string {
	var changes []string
	field := func(name, from, to string) {
		if strings.TrimSpace(from) != strings.TrimSpace(to) {
			changes = append(changes, fmt.Sprintf("%s %q -> %q", name, from, to))
		}
	}

	field("financial_status", inv.FinancialStatus, order.FinancialStatus)
	field("fulfillment_status", inv.FulfillmentStatus, order.FulfillmentOrDefault())
	field("tags", inv.Tags, order.Tags)
	field("note", inv.Remarks, order.Note)
	if order.CancelledAt != nil {
		changes = append(changes, "order cancelled at "+order.CancelledAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if inv.GrandTotal.Sub(body.GrandTotal).Abs().GreaterThan(totalTolerance) {
		changes = append(changes, fmt.Sprintf("total %s -> %s", inv.GrandTotal.StringFixed(2), body.GrandTotal.StringFixed(2)))
	}

	return append(changes, diffLines(inv.Items, body.Items)...)
}

func diffLines(stored, fresh []model.InvoiceItem) []string {
	old := make(map[string]model.InvoiceItem, len(stored))
	storedKeys := lineKeys(stored)
	for i, it := range stored {
		old[storedKeys[i]] = it
	}

	var changes []string
	seen := make(map[string]bool, len(fresh))
	freshKeys := lineKeys(fresh)
	for i, it := range fresh {
		key := freshKeys[i]
		seen[key] = true

		prev, ok := old[key]
		if !ok {
			changes = append(changes, fmt.Sprintf("line %s added (qty %d)", key, it.Qty))
			continue
		}
		if prev.Qty != it.Qty {
			changes = append(changes, fmt.Sprintf("line %s qty %d -> %d", key, prev.Qty, it.Qty))
		}
		if prev.Rate.Sub(it.Rate).Abs().GreaterThan(totalTolerance) {
			changes = append(changes, fmt.Sprintf("line %s rate %s -> %s", key, prev.Rate.StringFixed(2), it.Rate.StringFixed(2)))
		}
	}

	var removed []string
	for key := range old {
		if !seen[key] {
			removed = append(removed, fmt.Sprintf("line %s removed", key))
		}
	}
	sort.Strings(removed)
	return append(changes, removed...)
}

// lineKeys keys each line, numbering repeats of the same key in order so
// lines sharing a variant or item code are compared one to one.
func lineKeys(items []model.InvoiceItem) []string {
	keys := make([]string, len(items))
	counts := make(map[string]int, len(items))
	for i, it := range items {
		key := lineKey(it)
		counts[key]++
		if n := counts[key]; n > 1 {
			key = fmt.Sprintf("%s#%d", key, n)
		}
		keys[i] = key
	}
	return keys
}

// lineKey falls back to the item code for lines stored without an external
// line id.
func lineKey(it model.InvoiceItem) string {
	if it.ExternalLineID != "" {
		return it.ExternalLineID
	}
	return "item:" + it.ItemCode
}
