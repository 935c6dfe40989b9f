package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Store is one connected storefront plus its accounting defaults.
type Store struct {
	ID                            string     `gorm:"primaryKey;size:64;not null" yaml:"id"`
	ShopDomain                    string     `gorm:"size:191;uniqueIndex;not null" yaml:"shop_domain"`
	SharedSecret                  string     `gorm:"size:255" yaml:"shared_secret"`
	AccessToken                   string     `gorm:"size:255" yaml:"access_token"`
	Company                       string     `gorm:"size:140" yaml:"company"`
	Warehouse                     string     `gorm:"size:140" yaml:"warehouse"`
	CostCenter                    string     `gorm:"size:140" yaml:"cost_center"`
	BankAccount                   string     `gorm:"size:140" yaml:"bank_account"`
	DefaultSalesTaxAccount        string     `gorm:"size:140" yaml:"default_sales_tax_account"`
	DefaultShippingChargesAccount string     `gorm:"size:140" yaml:"default_shipping_charges_account"`
	AddShippingAsItem             bool       `yaml:"add_shipping_as_item"`
	ShippingItemCode              string     `gorm:"size:140" yaml:"shipping_item_code"`
	CreateDeliveryNote            bool       `yaml:"create_delivery_note"`
	SubmitOnPaid                  bool       `yaml:"submit_on_paid"`
	OrderCutoffDate               *time.Time `yaml:"order_cutoff_date"`

	ChannelMappings []SalesChannelMapping   `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" yaml:"sales_channels"`
	GatewayMappings []PaymentGatewayMapping `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" yaml:"payment_gateways"`
	TaxMappings     []TaxAccountMapping     `gorm:"foreignKey:StoreID;constraint:OnDelete:CASCADE" yaml:"tax_accounts"`

	CreatedAt time.Time `yaml:"-"`
	UpdatedAt time.Time `yaml:"-"`
}

type SalesChannelMapping struct {
	ID                      uint   `gorm:"primaryKey" yaml:"-"`
	StoreID                 string `gorm:"size:64;index;not null" yaml:"-"`
	SalesChannelName        string `gorm:"size:140;not null" yaml:"name"`
	CostCenter              string `gorm:"size:140" yaml:"cost_center"`
	BankAccount             string `gorm:"size:140" yaml:"bank_account"`
	TaxAccount              string `gorm:"size:140" yaml:"tax_account"`
	TaxAccountingClass      string `gorm:"size:140" yaml:"tax_accounting_class"`
	ShippingAccount         string `gorm:"size:140" yaml:"shipping_account"`
	ShippingAccountingClass string `gorm:"size:140" yaml:"shipping_accounting_class"`
}

type PaymentGatewayMapping struct {
	ID          uint   `gorm:"primaryKey" yaml:"-"`
	StoreID     string `gorm:"size:64;index;not null" yaml:"-"`
	GatewayName string `gorm:"size:140;not null" yaml:"name"`
	BankAccount string `gorm:"size:140" yaml:"bank_account"`
}

// TaxAccountMapping maps a tax or shipping line title to a ledger account.
type TaxAccountMapping struct {
	ID      uint   `gorm:"primaryKey" yaml:"-"`
	StoreID string `gorm:"size:64;index;not null" yaml:"-"`
	Title   string `gorm:"size:140;not null" yaml:"title"`
	Account string `gorm:"size:140;not null" yaml:"account"`
}

type Customer struct {
	ID                uint    `gorm:"primaryKey"`
	ShopifyCustomerID string  `gorm:"size:64;index"`
	Email             *string `gorm:"size:191;uniqueIndex"`
	FirstName         string  `gorm:"size:140"`
	LastName          string  `gorm:"size:140"`
	Phone             string  `gorm:"size:64"`
	Address1          string  `gorm:"size:255"`
	Address2          string  `gorm:"size:255"`
	City              string  `gorm:"size:140"`
	Province          string  `gorm:"size:140"`
	Zip               string  `gorm:"size:32"`
	Country           string  `gorm:"size:140"`

	Stores []CustomerStoreLink `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmailAddress returns the customer's email, empty when none is known.
func (c *Customer) EmailAddress() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

type CustomerStoreLink struct {
	ID         uint   `gorm:"primaryKey"`
	CustomerID uint   `gorm:"not null;uniqueIndex:idx_customer_store"`
	StoreID    string `gorm:"size:64;not null;uniqueIndex:idx_customer_store"`
	CreatedAt  time.Time
}

type Item struct {
	ItemCode string `gorm:"primaryKey;size:140;not null"`
	ItemName string `gorm:"size:191;index"`
	SKU      string `gorm:"size:140;index"`
	Disabled bool   `gorm:"index"`

	Barcodes []ItemBarcode `gorm:"foreignKey:ItemCode;constraint:OnDelete:CASCADE"`
}

type ItemBarcode struct {
	ID       uint   `gorm:"primaryKey"`
	ItemCode string `gorm:"size:140;index;not null"`
	Barcode  string `gorm:"size:140;uniqueIndex;not null"`
}

// ItemStoreLink ties a catalog item to the storefront product/variant ids.
type ItemStoreLink struct {
	ID               uint   `gorm:"primaryKey"`
	ItemCode         string `gorm:"size:140;index;not null"`
	StoreID          string `gorm:"size:64;index;not null"`
	ShopifyProductID string `gorm:"size:64;index"`
	ShopifyVariantID string `gorm:"size:64;index"`
}

// Invoice is the synchronized financial document for one order.
// ActiveKey holds "store:order" while the invoice is not cancelled, which
// makes the unique index admit a single live invoice per order.
type Invoice struct {
	ID                 uint    `gorm:"primaryKey"`
	Name               string  `gorm:"size:64;uniqueIndex;not null"`
	StoreID            string  `gorm:"size:64;index:idx_invoice_order;not null"`
	ShopifyOrderID     string  `gorm:"size:64;index:idx_invoice_order;not null"`
	ShopifyOrderNumber string  `gorm:"size:64"`
	ActiveKey          *string `gorm:"size:140;uniqueIndex"`
	CustomerID         uint
	Status             DocStatus `gorm:"size:16;index;not null"`
	FinancialStatus    string    `gorm:"size:32"`
	FulfillmentStatus  string    `gorm:"size:32"`
	PaymentGateway     string    `gorm:"size:140"`
	SalesChannel       string    `gorm:"size:140"`
	CostCenter         string    `gorm:"size:140"`
	BankAccount        string    `gorm:"size:140"`
	PaymentCaptureDate *time.Time
	PostingDate        time.Time
	DueDate            time.Time
	Remarks            string          `gorm:"type:text"`
	Tags               string          `gorm:"size:255"`
	NetTotal           decimal.Decimal `gorm:"type:decimal(18,4)"`
	TotalTaxes         decimal.Decimal `gorm:"type:decimal(18,4)"`
	GrandTotal         decimal.Decimal `gorm:"type:decimal(18,4)"`
	OutstandingAmount  decimal.Decimal `gorm:"type:decimal(18,4)"`
	SubmittedAt        *time.Time
	Version            int `gorm:"not null;default:1"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Taxes []InvoiceTax  `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type InvoiceItem struct {
	ID             uint            `gorm:"primaryKey"`
	InvoiceID      uint            `gorm:"index;not null"`
	Idx            int             `gorm:"not null"`
	ItemCode       string          `gorm:"size:140;not null"`
	ItemName       string          `gorm:"size:191"`
	ExternalLineID string          `gorm:"size:140;index"`
	Qty            int             `gorm:"not null"`
	Rate           decimal.Decimal `gorm:"type:decimal(18,4)"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4)"`
	Discount       decimal.Decimal `gorm:"type:decimal(18,4)"`
	CostCenter     string          `gorm:"size:140"`
}

type InvoiceTax struct {
	ID              uint            `gorm:"primaryKey"`
	InvoiceID       uint            `gorm:"index;not null"`
	Idx             int             `gorm:"not null"`
	AccountHead     string          `gorm:"size:140;not null"`
	Description     string          `gorm:"size:255"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(18,4)"`
	CostCenter      string          `gorm:"size:140"`
	AccountingClass string          `gorm:"size:140"`
}

type DeliveryNote struct {
	ID                    uint      `gorm:"primaryKey"`
	Name                  string    `gorm:"size:64;uniqueIndex;not null"`
	InvoiceID             uint      `gorm:"index;not null"`
	StoreID               string    `gorm:"size:64;index:idx_dn_order;not null"`
	ShopifyOrderID        string    `gorm:"size:64;index:idx_dn_order;not null"`
	ActiveKey             *string   `gorm:"size:140;uniqueIndex"`
	Status                DocStatus `gorm:"size:16;index;not null"`
	FinancialStatus       string    `gorm:"size:32"`
	ShipStationShipmentID string    `gorm:"size:64"`
	Version               int       `gorm:"not null;default:1"`

	Items []DeliveryNoteItem `gorm:"foreignKey:DeliveryNoteID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type DeliveryNoteItem struct {
	ID             uint   `gorm:"primaryKey"`
	DeliveryNoteID uint   `gorm:"index;not null"`
	ItemCode       string `gorm:"size:140;not null"`
	Qty            int    `gorm:"not null"`
}

type PaymentEntry struct {
	ID             uint            `gorm:"primaryKey"`
	Name           string          `gorm:"size:64;uniqueIndex;not null"`
	InvoiceID      uint            `gorm:"index;not null"`
	StoreID        string          `gorm:"size:64;index:idx_pe_order;not null"`
	ShopifyOrderID string          `gorm:"size:64;index:idx_pe_order;not null"`
	ActiveKey      *string         `gorm:"size:140;uniqueIndex"`
	Status         DocStatus       `gorm:"size:16;index;not null"`
	BankAccount    string          `gorm:"size:140;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4)"`
	ReferenceNo    string          `gorm:"size:140"`
	PostingDate    time.Time
	Version        int `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LedgerEntry records one webhook delivery attempt and its outcome.
type LedgerEntry struct {
	ID             string         `gorm:"primaryKey;size:36"`
	EventType      EventType      `gorm:"size:64;index;not null"`
	StoreID        string         `gorm:"size:64;index:idx_ledger_order"`
	ShopifyOrderID string         `gorm:"size:64;index:idx_ledger_order"`
	Payload        datatypes.JSON `gorm:"type:json"`
	Status         LedgerStatus   `gorm:"size:32;index;not null"`
	Message        string         `gorm:"type:text"`
	RequestID      string         `gorm:"size:64"`
	RetryOf        *string        `gorm:"size:36"`
	CreatedAt      time.Time      `gorm:"index"`
	UpdatedAt      time.Time
}

type AdvisoryLock struct {
	Name      string `gorm:"primaryKey;size:191"`
	Owner     string `gorm:"size:64;not null"`
	ExpiresAt time.Time
}

type RateLimitBucket struct {
	Key        string `gorm:"column:bucket_key;primaryKey;size:191"`
	Tokens     float64
	LastRefill time.Time
	UpdatedAt  time.Time
}

// AllModels lists every table for AutoMigrate.
func AllModels() []any {
	return []any{
		&Store{},
		&SalesChannelMapping{},
		&PaymentGatewayMapping{},
		&TaxAccountMapping{},
		&Customer{},
		&CustomerStoreLink{},
		&Item{},
		&ItemBarcode{},
		&ItemStoreLink{},
		&Invoice{},
		&InvoiceItem{},
		&InvoiceTax{},
		&DeliveryNote{},
		&DeliveryNoteItem{},
		&PaymentEntry{},
		&LedgerEntry{},
		&AdvisoryLock{},
		&RateLimitBucket{},
	}
}
