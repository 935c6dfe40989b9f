// Package routing resolves which ledger accounts and cost center an order
// posts to. Gateway answers where the money landed; channel answers which
// business line gets credit. The two are resolved independently.
package routing

import (
	"strings"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
)

// Tier names the configuration level a field was resolved from.
type Tier string

const (
	TierNone    Tier = ""
	TierGateway Tier = "gateway"
	TierChannel Tier = "channel"
	TierStore   Tier = "store"
)

type Decision struct {
	Gateway string
	Channel string

	CostCenter  string
	BankAccount string

	TaxAccount              string
	TaxAccountingClass      string
	ShippingAccount         string
	ShippingAccountingClass string

	CostCenterTier  Tier
	BankAccountTier Tier
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve applies gateway, then channel, then store defaults; the first tier
// that supplies a field wins. A missing bank account is a configuration error.
func Resolve(order *model.Order, store *model.Store) (*Decision, error) {
	d := &Decision{Gateway: order.PrimaryGateway()}

	if gw := normalize(d.Gateway); gw != "" {
		for _, m := range store.GatewayMappings {
			if normalize(m.GatewayName) == gw && m.BankAccount != "" {
				d.BankAccount = m.BankAccount
				d.BankAccountTier = TierGateway
				break
			}
		}
	}

	if ch := normalize(order.SourceName); ch != "" {
		for _, m := range store.ChannelMappings {
			if normalize(m.SalesChannelName) != ch {
				continue
			}
			d.Channel = m.SalesChannelName
			if m.CostCenter != "" {
				d.CostCenter = m.CostCenter
				d.CostCenterTier = TierChannel
			}
			if d.BankAccount == "" && m.BankAccount != "" {
				d.BankAccount = m.BankAccount
				d.BankAccountTier = TierChannel
			}
			d.TaxAccount = m.TaxAccount
			d.TaxAccountingClass = m.TaxAccountingClass
			d.ShippingAccount = m.ShippingAccount
			d.ShippingAccountingClass = m.ShippingAccountingClass
			break
		}
	}

	if d.CostCenter == "" && store.CostCenter != "" {
		d.CostCenter = store.CostCenter
		d.CostCenterTier = TierStore
	}
	if d.BankAccount == "" && store.BankAccount != "" {
		d.BankAccount = store.BankAccount
		d.BankAccountTier = TierStore
	}

	if d.BankAccount == "" {
		return d, apperror.New(apperror.CodeConfiguration,
			"no bank account for store %s (gateway %q, channel %q)", store.ID, d.Gateway, order.SourceName)
	}
	return d, nil
}

func mappedAccount(store *model.Store, title string) string {
	t := normalize(title)
	if t == "" {
		return ""
	}
	for _, m := range store.TaxMappings {
		if normalize(m.Title) == t {
			return m.Account
		}
	}
	return ""
}

// TaxAccountFor picks the account for a tax line titled title.
func (d *Decision) TaxAccountFor(store *model.Store, title string) (string, error) {
	switch {
	case d.TaxAccount != "":
		return d.TaxAccount, nil
	case mappedAccount(store, title) != "":
		return mappedAccount(store, title), nil
	case store.DefaultSalesTaxAccount != "":
		return store.DefaultSalesTaxAccount, nil
	}
	return "", apperror.New(apperror.CodeConfiguration, "no tax account for %q on store %s", title, store.ID)
}

// ShippingAccountFor picks the account for a shipping line titled title.
func (d *Decision) ShippingAccountFor(store *model.Store, title string) (string, error) {
	switch {
	case d.ShippingAccount != "":
		return d.ShippingAccount, nil
	case mappedAccount(store, title) != "":
		return mappedAccount(store, title), nil
	case store.DefaultShippingChargesAccount != "":
		return store.DefaultShippingChargesAccount, nil
	}
	return "", apperror.New(apperror.CodeConfiguration, "no shipping account for %q on store %s", title, store.ID)
}
