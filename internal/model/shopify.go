package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the storefront order webhook payload.
type Order struct {
	ID                  int64             `json:"id"`
	Name                string            `json:"name"`
	OrderNumber         int64             `json:"order_number"`
	Email               string            `json:"email"`
	FinancialStatus     string            `json:"financial_status"`
	FulfillmentStatus   string            `json:"fulfillment_status"`
	CreatedAt           time.Time         `json:"created_at"`
	ProcessedAt         *time.Time        `json:"processed_at"`
	CancelledAt         *time.Time        `json:"cancelled_at"`
	CancelReason        string            `json:"cancel_reason"`
	Tags                string            `json:"tags"`
	Note                string            `json:"note"`
	Currency            string            `json:"currency"`
	TotalPrice          decimal.Decimal   `json:"total_price"`
	TaxesIncluded       bool              `json:"taxes_included"`
	SourceName          string            `json:"source_name"`
	Gateway             string            `json:"gateway"`
	PaymentGatewayNames []string          `json:"payment_gateway_names"`
	Customer            *OrderCustomer    `json:"customer"`
	ShippingAddress     *Address          `json:"shipping_address"`
	LineItems           []LineItem        `json:"line_items"`
	ShippingLines       []ShippingLine    `json:"shipping_lines"`
	Refunds             []json.RawMessage `json:"refunds"`
	Transactions        []Transaction     `json:"transactions"`
}

// OrderCustomer is the customer object embedded in an order payload.
type OrderCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type LineItem struct {
	ID                  int64                `json:"id"`
	ProductID           *int64               `json:"product_id"`
	VariantID           *int64               `json:"variant_id"`
	ProductExists       bool                 `json:"product_exists"`
	SKU                 string               `json:"sku"`
	Title               string               `json:"title"`
	Name                string               `json:"name"`
	Quantity            int                  `json:"quantity"`
	Price               decimal.Decimal      `json:"price"`
	TaxLines            []TaxLine            `json:"tax_lines"`
	DiscountAllocations []DiscountAllocation `json:"discount_allocations"`
}

type ShippingLine struct {
	Title               string               `json:"title"`
	Code                string               `json:"code"`
	Price               decimal.Decimal      `json:"price"`
	TaxLines            []TaxLine            `json:"tax_lines"`
	DiscountAllocations []DiscountAllocation `json:"discount_allocations"`
}

type TaxLine struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Rate  decimal.Decimal `json:"rate"`
}

type DiscountAllocation struct {
	Amount decimal.Decimal `json:"amount"`
}

type Transaction struct {
	Gateway string `json:"gateway"`
	Kind    string `json:"kind"`
	Status  string `json:"status"`
}

// OrderID is the platform order id as a record key.
func (o *Order) OrderID() string {
	return strconv.FormatInt(o.ID, 10)
}

// CustomerEmail prefers the customer object and falls back to the order email.
func (o *Order) CustomerEmail() string {
	if o.Customer != nil && o.Customer.Email != "" {
		return o.Customer.Email
	}
	return o.Email
}

// PrimaryGateway returns the gateway that settled the order.
func (o *Order) PrimaryGateway() string {
	if len(o.PaymentGatewayNames) > 0 && o.PaymentGatewayNames[0] != "" {
		return o.PaymentGatewayNames[0]
	}
	if o.Gateway != "" {
		return o.Gateway
	}
	for _, txn := range o.Transactions {
		if txn.Gateway != "" {
			return txn.Gateway
		}
	}
	return ""
}

// FulfillmentOrDefault treats a missing fulfillment status as unfulfilled.
func (o *Order) FulfillmentOrDefault() string {
	if strings.TrimSpace(o.FulfillmentStatus) == "" {
		return "unfulfilled"
	}
	return o.FulfillmentStatus
}

// Discount is the sum of the allocation amounts on the line.
func (li *LineItem) Discount() decimal.Decimal {
	total := decimal.Zero
	for _, d := range li.DiscountAllocations {
		total = total.Add(d.Amount)
	}
	return total
}

func (li *LineItem) Tax() decimal.Decimal {
	total := decimal.Zero
	for _, t := range li.TaxLines {
		total = total.Add(t.Price)
	}
	return total
}

// Fingerprint identifies the line across payload revisions.
func (li *LineItem) Fingerprint(itemCode string) string {
	switch {
	case li.VariantID != nil && *li.VariantID != 0:
		return "variant:" + strconv.FormatInt(*li.VariantID, 10)
	case li.SKU != "":
		return "sku:" + li.SKU
	default:
		return "item:" + itemCode
	}
}

func (sl *ShippingLine) Discount() decimal.Decimal {
	total := decimal.Zero
	for _, d := range sl.DiscountAllocations {
		total = total.Add(d.Amount)
	}
	return total
}

func (sl *ShippingLine) Tax() decimal.Decimal {
	total := decimal.Zero
	for _, t := range sl.TaxLines {
		total = total.Add(t.Price)
	}
	return total
}

// ParseOrder decodes a raw webhook body.
func ParseOrder(body []byte) (*Order, error) {
	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
