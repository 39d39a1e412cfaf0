package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boutique/storefront/internal/domain"
)

type AddCartItemRequest struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	SizeLabel string `json:"size_label,omitempty"`
	Quantity  int    `json:"quantity"`
}

type MergeResult struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

func (c *Client) GetCart(ctx context.Context) (*domain.ServerCart, error) {
	var cart domain.ServerCart
	if _, err := c.do(ctx, http.MethodGet, "/cart/", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) AddCartItem(ctx context.Context, req AddCartItemRequest) (*domain.ServerCartItem, error) {
	var item domain.ServerCartItem
	if _, err := c.do(ctx, http.MethodPost, "/cart/", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateCartItem sets the quantity of a server line. The backend deletes the
// line for quantities <= 0 and answers 204.
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, quantity int) error {
	body := map[string]int{"quantity": quantity}
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/cart/%d/", itemID), body, nil)
	return err
}

func (c *Client) DeleteCartItem(ctx context.Context, itemID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/cart/%d/", itemID), nil, nil)
	return err
}

func (c *Client) MergeCart(ctx context.Context, items []domain.StartItem) (*MergeResult, error) {
	body := map[string][]domain.StartItem{"items": items}
	var res MergeResult
	if _, err := c.do(ctx, http.MethodPost, "/cart/merge/", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
