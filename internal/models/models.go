package models

import "time"

// Address is a billing or shipping block as the upstream commerce API expects it.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LineItem is a cart line as submitted by the client. Price, Name and SKU are
// client-supplied display values; they are never trusted for order totals.
type LineItem struct {
	ProductID   int64   `json:"product_id" binding:"required"`
	VariationID int64   `json:"variation_id,omitempty"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	Price       float64 `json:"price,omitempty"`
	Name        string  `json:"name,omitempty"`
	SKU         string  `json:"sku,omitempty"`
}

// ShippingLine describes a selected shipping rate.
type ShippingLine struct {
	MethodID    string  `json:"method_id"`
	MethodTitle string  `json:"method_title"`
	Total       float64 `json:"total"`
}

// CheckoutRequest is the inbound checkout attempt.
type CheckoutRequest struct {
	Billing        Address        `json:"billing" binding:"required"`
	Shipping       *Address       `json:"shipping,omitempty"`
	PaymentMethod  string         `json:"payment_method" binding:"required"`
	LineItems      []LineItem     `json:"line_items" binding:"required,min=1,dive"`
	ShippingLines  []ShippingLine `json:"shipping_lines,omitempty"`
	CouponCode     string         `json:"coupon_code,omitempty"`
	CartTotal      float64        `json:"cart_total,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`

	// Client assertion that an online payment already went through. Trusting
	// this flag is a known trust-boundary gap, see service.PaymentVerifier.
	PaymentProcessed bool   `json:"payment_processed,omitempty"`
	TransactionID    string `json:"transaction_id,omitempty"`

	NDISNumber           string `json:"ndis_number,omitempty"`
	HCPNumber            string `json:"hcp_number,omitempty"`
	DeliveryAuthority    string `json:"delivery_authority,omitempty"`
	DeliveryInstructions string `json:"delivery_instructions,omitempty"`
	NewsletterOptIn      bool   `json:"newsletter_opt_in,omitempty"`
}

// Product is the authoritative catalog view of a product or variation.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Price       float64 `json:"price"`
	OnSale      bool    `json:"on_sale"`
	InStock     bool    `json:"in_stock"`
	CategoryIDs []int64 `json:"category_ids,omitempty"`
}

// Coupon is the authoritative coupon definition.
type Coupon struct {
	ID                        int64      `json:"id"`
	Code                      string     `json:"code"`
	Status                    string     `json:"status"`
	Amount                    float64    `json:"amount"`
	DiscountType              string     `json:"discount_type"`
	DateExpires               *time.Time `json:"date_expires,omitempty"`
	UsageLimit                int        `json:"usage_limit,omitempty"`
	UsageCount                int        `json:"usage_count,omitempty"`
	MinimumAmount             float64    `json:"minimum_amount,omitempty"`
	MaximumAmount             float64    `json:"maximum_amount,omitempty"`
	ProductIDs                []int64    `json:"product_ids,omitempty"`
	ExcludedProductIDs        []int64    `json:"excluded_product_ids,omitempty"`
	ProductCategories         []int64    `json:"product_categories,omitempty"`
	ExcludedProductCategories []int64    `json:"excluded_product_categories,omitempty"`
	ExcludeSaleItems          bool       `json:"exclude_sale_items,omitempty"`
}

// Coupon discount types
const (
	DiscountTypePercent      = "percent"
	DiscountTypeFixedCart    = "fixed_cart"
	DiscountTypeFixedProduct = "fixed_product"
)

// ReconciledItem is a cart line after catalog verification. Quantity and ids
// come from the request; everything priced comes from the catalog.
type ReconciledItem struct {
	ProductID     int64
	VariationID   int64
	Quantity      int
	VerifiedPrice float64
	Name          string
	SKU           string
	OnSale        bool
	CategoryIDs   []int64
}

// ReconciledCart is the ephemeral output of cart reconciliation. It is never
// persisted; order assembly consumes it immediately.
type ReconciledCart struct {
	Items         []ReconciledItem
	CouponApplied *Coupon
	Discount      float64
	Subtotal      float64
}

// MetaEntry is a key/value metadata pair on the order payload.
type MetaEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PayloadLineItem is a server-trusted line item in the upstream order payload.
type PayloadLineItem struct {
	ProductID   int64 `json:"product_id"`
	VariationID int64 `json:"variation_id,omitempty"`
	Quantity    int   `json:"quantity"`
}

// PayloadShippingLine mirrors ShippingLine with the string total the upstream
// API expects.
type PayloadShippingLine struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

// CouponLine references an applied coupon on the order payload.
type CouponLine struct {
	Code string `json:"code"`
}

// OrderPayload is the assembled order-creation request. Created exactly once
// per successful checkout attempt; immutable once submitted.
type OrderPayload struct {
	PaymentMethod      string                `json:"payment_method"`
	PaymentMethodTitle string                `json:"payment_method_title,omitempty"`
	Status             string                `json:"status"`
	SetPaid            bool                  `json:"set_paid"`
	CustomerID         int64                 `json:"customer_id,omitempty"`
	CustomerIP         string                `json:"customer_ip_address,omitempty"`
	Billing            Address               `json:"billing"`
	Shipping           Address               `json:"shipping"`
	LineItems          []PayloadLineItem     `json:"line_items"`
	ShippingLines      []PayloadShippingLine `json:"shipping_lines,omitempty"`
	CouponLines        []CouponLine          `json:"coupon_lines,omitempty"`
	MetaData           []MetaEntry           `json:"meta_data,omitempty"`
}

// OrderResult is the durable outcome returned to the client and cached in the
// idempotency store.
type OrderResult struct {
	ID                 int64             `json:"id"`
	OrderKey           string            `json:"order_key"`
	Status             string            `json:"status"`
	Total              string            `json:"total"`
	PaymentMethod      string            `json:"payment_method"`
	PaymentMethodTitle string            `json:"payment_method_title"`
	Billing            Address           `json:"billing"`
	Shipping           Address           `json:"shipping"`
	LineItems          []PayloadLineItem `json:"line_items"`
}

// User is an authenticated storefront identity resolved by the session layer.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Customer is the upstream commerce customer record.
type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Order statuses at creation time. Completed/cancelled happen later, outside
// the checkout flow.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusFailed     = "failed"
)

// Offline payment methods
const (
	PaymentMethodCOD          = "cod"
	PaymentMethodBACS         = "bacs"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCheque       = "cheque"
)

// DeliveryAuthorityLabel maps a delivery-authority code to the human label
// recorded in order metadata. Unknown codes pass through unchanged.
func DeliveryAuthorityLabel(code string) string {
	switch code {
	case "self":
		return "Self Managed"
	case "plan":
		return "Plan Managed"
	case "agency":
		return "Agency Managed"
	default:
		return code
	}
}
