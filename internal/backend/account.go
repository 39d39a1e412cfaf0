package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boutique/storefront/internal/domain"
)

func (c *Client) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	return getList[domain.Address](ctx, c, "/addresses/")
}

func (c *Client) CreateAddress(ctx context.Context, addr domain.Address) (*domain.Address, error) {
	var out domain.Address
	if _, err := c.do(ctx, http.MethodPost, "/addresses/", addr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id int64, addr domain.Address) (*domain.Address, error) {
	var out domain.Address
	if _, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/addresses/%d/", id), addr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/addresses/%d/", id), nil, nil)
	return err
}

func (c *Client) ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	return getList[domain.ShippingMethod](ctx, c, "/shipping-methods/")
}

func (c *Client) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return getList[domain.PaymentMethod](ctx, c, "/payment-methods/")
}

func (c *Client) GetPreferences(ctx context.Context) (*domain.Preferences, error) {
	var prefs domain.Preferences
	if _, err := c.do(ctx, http.MethodGet, "/preferences/mine/", nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, prefs domain.Preferences) (*domain.Preferences, error) {
	var out domain.Preferences
	if _, err := c.do(ctx, http.MethodPatch, "/preferences/mine/", prefs, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
