package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Address struct {
	ID               int64               `json:"id,omitempty"`
	Label            string              `json:"label,omitempty"`
	FullName         string              `json:"full_name,omitempty"`
	Phone            string              `json:"phone"`
	Line1            string              `json:"line1"`
	Line2            string              `json:"line2,omitempty"`
	City             string              `json:"city"`
	State            string              `json:"state,omitempty"`
	PostalCode       string              `json:"postal_code,omitempty"`
	Country          string              `json:"country,omitempty"`
	Latitude         decimal.NullDecimal `json:"latitude"`
	Longitude        decimal.NullDecimal `json:"longitude"`
	PlaceID          string              `json:"place_id,omitempty"`
	FormattedAddress string              `json:"formatted_address,omitempty"`
	IsDefault        bool                `json:"is_default"`
}

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// Validate checks the fields the address form insists on before anything is
// sent, including the coordinates picked on the map.
func (a Address) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if !a.Latitude.Valid {
		missing = append(missing, "latitude")
	}
	if !a.Longitude.Valid {
		missing = append(missing, "longitude")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAddress, strings.Join(missing, ", "))
	}

	if a.Latitude.Decimal.Abs().GreaterThan(maxLatitude) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidAddress)
	}
	if a.Longitude.Decimal.Abs().GreaterThan(maxLongitude) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidAddress)
	}
	return nil
}

type ShippingMethod struct {
	ID                  int64           `json:"id"`
	Code                string          `json:"code"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	BaseCost            decimal.Decimal `json:"base_cost"`
	TransitDaysMin      *int            `json:"transit_days_min,omitempty"`
	TransitDaysMax      *int            `json:"transit_days_max,omitempty"`
	IsActive            bool            `json:"is_active"`
	SupportsCOD         bool            `json:"supports_cod"`
	RequiresPickupPoint bool            `json:"requires_pickup_point"`
}

type PaymentType string

const (
	PaymentTypeOffline PaymentType = "OFFLINE"
	PaymentTypeGateway PaymentType = "GATEWAY"
	PaymentTypeCOD     PaymentType = "COD"
)

const GatewayStripe = "stripe"

type PaymentMethod struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Type            PaymentType     `json:"type"`
	Instructions    string          `json:"instructions,omitempty"`
	GatewayProvider string          `json:"gateway_provider,omitempty"`
	IsActive        bool            `json:"is_active"`
	FeePercent      decimal.Decimal `json:"fee_percent"`
	FeeFixed        decimal.Decimal `json:"fee_fixed"`
	SupportsRefund  bool            `json:"supports_refund"`
}

// IsHosted reports whether paying with m redirects to an external card page.
func (m PaymentMethod) IsHosted() bool {
	return m.Type == PaymentTypeGateway && strings.EqualFold(m.GatewayProvider, GatewayStripe)
}

// StatusAfterConfirm is the status the backend moves a draft to on confirm.
func (m PaymentMethod) StatusAfterConfirm() OrderStatus {
	if m.Type == PaymentTypeCOD {
		return OrderStatusAwaitingDispatch
	}
	return OrderStatusPendingPayment
}

type Preferences struct {
	DefaultAddress        *int64 `json:"default_address"`
	DefaultShippingMethod *int64 `json:"default_shipping_method"`
	DefaultPaymentMethod  *int64 `json:"default_payment_method"`
}
