package routing

import (
	"testing"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore() *model.Store {
	return &model.Store{
		ID:                            "S1",
		CostCenter:                    "Main - S1",
		BankAccount:                   "Store Bank - S1",
		DefaultSalesTaxAccount:        "Sales Tax - S1",
		DefaultShippingChargesAccount: "Shipping - S1",
		GatewayMappings: []model.PaymentGatewayMapping{
			{GatewayName: "Afterpay", BankAccount: "Afterpay Clearing - S1"},
		},
		ChannelMappings: []model.SalesChannelMapping{
			{SalesChannelName: "TikTok Shop", CostCenter: "TikTok - S1"},
			{SalesChannelName: "wholesale", CostCenter: "Wholesale - S1", BankAccount: "Wholesale Bank - S1", TaxAccount: "Wholesale Tax - S1"},
		},
		TaxMappings: []model.TaxAccountMapping{
			{Title: "CA State Tax", Account: "CA Tax - S1"},
			{Title: "Express", Account: "Express Freight - S1"},
		},
	}
}

func TestResolve_TierPrecedence(t *testing.T) {
	store := testStore()
	order := &model.Order{PaymentGatewayNames: []string{" afterpay "}, SourceName: "tiktok shop"}

	d, err := Resolve(order, store)
	require.NoError(t, err)
	assert.Equal(t, "Afterpay Clearing - S1", d.BankAccount)
	assert.Equal(t, TierGateway, d.BankAccountTier)
	assert.Equal(t, "TikTok - S1", d.CostCenter)
	assert.Equal(t, TierChannel, d.CostCenterTier)

	// without the gateway mapping the channel has no bank account, so the store default applies
	store.GatewayMappings = nil
	d, err = Resolve(order, store)
	require.NoError(t, err)
	assert.Equal(t, "Store Bank - S1", d.BankAccount)
	assert.Equal(t, TierStore, d.BankAccountTier)
	assert.Equal(t, "TikTok - S1", d.CostCenter)
}

func TestResolve_ChannelBankUsedWhenGatewayUnmapped(t *testing.T) {
	order := &model.Order{Gateway: "shopify_payments", SourceName: "Wholesale"}

	d, err := Resolve(order, testStore())
	require.NoError(t, err)
	assert.Equal(t, "Wholesale Bank - S1", d.BankAccount)
	assert.Equal(t, TierChannel, d.BankAccountTier)
	assert.Equal(t, "Wholesale - S1", d.CostCenter)
	assert.Equal(t, "wholesale", d.Channel)
}

func TestResolve_StoreDefaults(t *testing.T) {
	d, err := Resolve(&model.Order{SourceName: "web"}, testStore())
	require.NoError(t, err)
	assert.Equal(t, "Main - S1", d.CostCenter)
	assert.Equal(t, TierStore, d.CostCenterTier)
	assert.Equal(t, "Store Bank - S1", d.BankAccount)
	assert.Equal(t, "", d.Channel)
}

func TestResolve_MissingBankAccountIsConfigurationError(t *testing.T) {
	store := testStore()
	store.BankAccount = ""
	store.GatewayMappings = nil

	_, err := Resolve(&model.Order{SourceName: "web"}, store)
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}

func TestResolve_GatewayFallbacks(t *testing.T) {
	order := &model.Order{Transactions: []model.Transaction{{Gateway: "AFTERPAY"}}}

	d, err := Resolve(order, testStore())
	require.NoError(t, err)
	assert.Equal(t, "AFTERPAY", d.Gateway)
	assert.Equal(t, TierGateway, d.BankAccountTier)
}

func TestTaxAndShippingAccounts(t *testing.T) {
	store := testStore()

	d, err := Resolve(&model.Order{SourceName: "web"}, store)
	require.NoError(t, err)

	acct, err := d.TaxAccountFor(store, "ca state tax")
	require.NoError(t, err)
	assert.Equal(t, "CA Tax - S1", acct)

	acct, err = d.TaxAccountFor(store, "NY State Tax")
	require.NoError(t, err)
	assert.Equal(t, "Sales Tax - S1", acct)

	acct, err = d.ShippingAccountFor(store, "Express")
	require.NoError(t, err)
	assert.Equal(t, "Express Freight - S1", acct)

	wholesale, err := Resolve(&model.Order{SourceName: "wholesale"}, store)
	require.NoError(t, err)
	acct, err = wholesale.TaxAccountFor(store, "CA State Tax")
	require.NoError(t, err)
	assert.Equal(t, "Wholesale Tax - S1", acct)

	store.DefaultSalesTaxAccount = ""
	_, err = d.TaxAccountFor(store, "NY State Tax")
	assert.True(t, apperror.IsConfiguration(err))

	store.DefaultShippingChargesAccount = ""
	_, err = d.ShippingAccountFor(store, "Ground")
	assert.True(t, apperror.IsConfiguration(err))
}
