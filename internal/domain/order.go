package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusDraft            OrderStatus = "DRAFT"
	OrderStatusPendingPayment   OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid             OrderStatus = "PAID"
	OrderStatusAwaitingDispatch OrderStatus = "AWAITING_DISPATCH"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCanceled         OrderStatus = "CANCELED"
	OrderStatusRefunded         OrderStatus = "REFUNDED"
)

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:            {OrderStatusPendingPayment, OrderStatusAwaitingDispatch, OrderStatusCanceled},
	OrderStatusPendingPayment:   {OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaid:             {OrderStatusAwaitingDispatch, OrderStatusRefunded, OrderStatusCanceled},
	OrderStatusAwaitingDispatch: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:          {OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusDelivered:        {OrderStatusRefunded},
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCanceled || s == OrderStatusRefunded
}

// CanCancel mirrors the backend: anything not canceled, delivered or refunded.
func (s OrderStatus) CanCancel() bool {
	return s != OrderStatusCanceled && s != OrderStatusDelivered && s != OrderStatusRefunded
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	VariantID    *int64          `json:"variant_id"`
	VariantSize  string          `json:"variant_size,omitempty"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

type Order struct {
	ID                      int64           `json:"id"`
	Status                  OrderStatus     `json:"status"`
	StatusLabel             string          `json:"status_label,omitempty"`
	Currency                string          `json:"currency"`
	TotalItems              int             `json:"total_items"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	ShippingCost            decimal.Decimal `json:"shipping_cost"`
	PaymentFee              decimal.Decimal `json:"payment_fee"`
	TaxTotal                decimal.Decimal `json:"tax_total"`
	GrandTotal              decimal.Decimal `json:"grand_total"`
	ShippingMethod          *int64          `json:"shipping_method"`
	ShippingMethodName      string          `json:"shipping_method_name,omitempty"`
	PaymentMethod           *int64          `json:"payment_method"`
	PaymentMethodName       string          `json:"payment_method_name,omitempty"`
	ShippingAddress         *int64          `json:"shipping_address"`
	ShippingAddressSnapshot json.RawMessage `json:"shipping_address_snapshot,omitempty"`
	PlacedAt                *time.Time      `json:"placed_at,omitempty"`
	PaidAt                  *time.Time      `json:"paid_at,omitempty"`
	CanceledAt              *time.Time      `json:"canceled_at,omitempty"`
	ExternalPaymentID       string          `json:"external_payment_id,omitempty"`
	ExternalPaymentStatus   string          `json:"external_payment_status,omitempty"`
	Notes                   string          `json:"notes,omitempty"`
	CustomerNote            string          `json:"customer_note,omitempty"`
	Items                   []OrderItem     `json:"items"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

func (o *Order) IsDraft() bool {
	return o != nil && o.Status == OrderStatusDraft
}

// StartItem is one line sent to POST /orders/start/ and POST /cart/merge/.
type StartItem struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	SizeLabel string `json:"size_label,omitempty"`
	Quantity  int    `json:"quantity"`
}

// StartItems converts cart lines into the payload used to open a draft.
func (ls Lines) StartItems() []StartItem {
	items := make([]StartItem, 0, len(ls))
	for _, l := range ls {
		items = append(items, StartItem{
			ProductID: l.ProductID,
			VariantID: l.ServerVariantID,
			SizeLabel: l.SelectedSize,
			Quantity:  l.Quantity,
		})
	}
	return items
}

// HostedSession is the redirect target of a hosted checkout.
type HostedSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
