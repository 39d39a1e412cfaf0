package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boutique/storefront/internal/domain"
)

type ConfirmRequest struct {
	Confirm           bool   `json:"confirm"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
}

type CheckoutSessionRequest struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (c *Client) StartOrder(ctx context.Context, items []domain.StartItem) (*domain.Order, error) {
	body := map[string][]domain.StartItem{"items": items}
	return c.orderCall(ctx, http.MethodPost, "/orders/start/", body)
}

func (c *Client) SetShippingMethod(ctx context.Context, orderID, methodID int64) (*domain.Order, error) {
	body := map[string]int64{"shipping_method_id": methodID}
	return c.orderCall(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d/set_shipping_method/", orderID), body)
}

func (c *Client) SetAddress(ctx context.Context, orderID, addressID int64) (*domain.Order, error) {
	body := map[string]int64{"address_id": addressID}
	return c.orderCall(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d/set_address/", orderID), body)
}

func (c *Client) SetPaymentMethod(ctx context.Context, orderID, methodID int64) (*domain.Order, error) {
	body := map[string]int64{"payment_method_id": methodID}
	return c.orderCall(ctx, http.MethodPatch, fmt.Sprintf("/orders/%d/set_payment_method/", orderID), body)
}

func (c *Client) ConfirmOrder(ctx context.Context, orderID int64, req ConfirmRequest) (*domain.Order, error) {
	req.Confirm = true
	return c.orderCall(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/confirm/", orderID), req)
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return c.orderCall(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel/", orderID), nil)
}

func (c *Client) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return c.orderCall(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/", orderID), nil)
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return getList[domain.Order](ctx, c, "/orders/")
}

// LatestDraft returns the caller's newest DRAFT order, or nil when the backend
// answers 204.
func (c *Client) LatestDraft(ctx context.Context) (*domain.Order, error) {
	var order domain.Order
	status, err := c.do(ctx, http.MethodGet, "/orders/draft-latest/", nil, &order)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

// CreateCheckoutSession opens a hosted card payment for the order.
func (c *Client) CreateCheckoutSession(ctx context.Context, orderID int64, req CheckoutSessionRequest) (*domain.HostedSession, error) {
	var out struct {
		ID          string `json:"id"`
		SessionID   string `json:"session_id"`
		URL         string `json:"url"`
		CheckoutURL string `json:"checkout_url"`
	}
	path := fmt.Sprintf("/orders/%d/create_checkout_session/", orderID)
	if _, err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}

	session := &domain.HostedSession{ID: out.ID, URL: out.URL}
	if session.ID == "" {
		session.ID = out.SessionID
	}
	if session.URL == "" {
		session.URL = out.CheckoutURL
	}
	if session.URL == "" {
		return nil, fmt.Errorf("backend: %s: missing checkout url", path)
	}
	return session, nil
}

func (c *Client) orderCall(ctx context.Context, method, path string, body interface{}) (*domain.Order, error) {
	var order domain.Order
	if _, err := c.do(ctx, method, path, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
