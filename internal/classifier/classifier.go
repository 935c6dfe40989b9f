// Package classifier decides whether an order payload carries enough data to
// materialize financial records.
package classifier

import (
	"strings"

	"shopify-order-sync/internal/model"
)

// HighRiskEmailDomain marks marketplace orders that can arrive with
// placeholder or redacted buyer details before a later update fills them in.
const HighRiskEmailDomain = "@tiktokw.us"

const maskChar = "*"

// IsComplete reports whether order can be synced now.
func IsComplete(order *model.Order) bool {
	return Reason(order) == ""
}

// Reason returns why order is incomplete, or "" when it is complete.
func Reason(order *model.Order) string {
	addr := order.ShippingAddress
	if addr == nil {
		return "missing shipping address"
	}
	if strings.TrimSpace(addr.Address1) == "" {
		return "shipping address has no street line"
	}

	email := strings.ToLower(strings.TrimSpace(order.CustomerEmail()))
	if !strings.Contains(email, HighRiskEmailDomain) {
		return ""
	}

	first := strings.TrimSpace(addr.FirstName)
	last := strings.TrimSpace(addr.LastName)
	switch {
	case first == "" || last == "":
		return "shipping name is empty"
	case strings.Contains(first, maskChar) || strings.Contains(last, maskChar):
		return "shipping name is masked"
	}

	localPart, _, _ := strings.Cut(email, "@")
	if strings.ToLower(first+" "+last) == localPart {
		return "shipping name is a copy of the email address"
	}
	return ""
}
