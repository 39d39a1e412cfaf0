package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusDraft, OrderStatusPendingPayment, true},
		{OrderStatusDraft, OrderStatusAwaitingDispatch, true},
		{OrderStatusDraft, OrderStatusPaid, false},
		{OrderStatusPendingPayment, OrderStatusPaid, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCanceled, false},
		{OrderStatusCanceled, OrderStatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestOrderStatus_Cancel(t *testing.T) {
	assert.True(t, OrderStatusDraft.CanCancel())
	assert.True(t, OrderStatusShipped.CanCancel())
	assert.False(t, OrderStatusDelivered.CanCancel())
	assert.False(t, OrderStatusRefunded.CanCancel())
	assert.True(t, OrderStatusCanceled.IsTerminal())
	assert.False(t, OrderStatusDraft.IsTerminal())
}

func TestOrderDecode(t *testing.T) {
	raw := `{"id":55,"status":"DRAFT","currency":"BOB","total_items":2,
		"subtotal":"100.00","shipping_cost":"15.00","payment_fee":"3.00","tax_total":"0.00","grand_total":"118.00",
		"shipping_method":3,"payment_method":2,"shipping_address":7,"shipping_address_snapshot":{"city":"La Paz"},
		"placed_at":null,"items":[{"id":1,"product_id":10,"variant_id":null,"sku":"CAM-M","name":"Camisa",
		"unit_price":"50.00","quantity":2,"line_subtotal":"100.00"}],
		"created_at":"2025-05-01T10:00:00.123456-04:00","updated_at":"2025-05-01T10:00:00Z"}`

	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))

	assert.True(t, o.IsDraft())
	assert.True(t, decimal.RequireFromString("118").Equal(o.GrandTotal))
	require.NotNil(t, o.ShippingAddress)
	assert.Equal(t, int64(7), *o.ShippingAddress)
	assert.Nil(t, o.PlacedAt)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "CAM-M", o.Items[0].SKU)
}

func TestPaymentMethod(t *testing.T) {
	stripe := PaymentMethod{Type: PaymentTypeGateway, GatewayProvider: "stripe"}
	cod := PaymentMethod{Type: PaymentTypeCOD}
	transfer := PaymentMethod{Type: PaymentTypeOffline}

	assert.True(t, stripe.IsHosted())
	assert.False(t, cod.IsHosted())
	assert.False(t, transfer.IsHosted())

	assert.Equal(t, OrderStatusPendingPayment, stripe.StatusAfterConfirm())
	assert.Equal(t, OrderStatusAwaitingDispatch, cod.StatusAfterConfirm())
	assert.Equal(t, OrderStatusPendingPayment, transfer.StatusAfterConfirm())
}

func TestAddressValidate(t *testing.T) {
	valid := Address{
		Phone:     "70000000",
		City:      "Santa Cruz",
		Line1:     "Av. Busch 123",
		Latitude:  decimal.NewNullDecimal(decimal.RequireFromString("-17.783300")),
		Longitude: decimal.NewNullDecimal(decimal.RequireFromString("-63.182100")),
	}
	require.NoError(t, valid.Validate())

	noCoords := valid
	noCoords.Latitude = decimal.NullDecimal{}
	err := noCoords.Validate()
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Contains(t, err.Error(), "latitude")

	badLng := valid
	badLng.Longitude = decimal.NewNullDecimal(decimal.NewFromInt(200))
	assert.ErrorIs(t, badLng.Validate(), ErrInvalidAddress)

	empty := Address{}
	err = empty.Validate()
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Contains(t, err.Error(), "phone, city, line1")
}
