package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/boutique/storefront/internal/cart"
	"github.com/boutique/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const maxLineQuantity = 99

type CartHandler struct {
	timeout time.Duration
}

func NewCartHandler(timeout time.Duration) *CartHandler {
	return &CartHandler{
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	Product       domain.Product `json:"product"`
	Quantity      int            `json:"quantity"`
	SelectedSize  string         `json:"selected_size,omitempty"`
	SelectedColor string         `json:"selected_color,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartDTO struct {
	cart.Snapshot
	Warning string `json:"warning,omitempty"`
}

func respondCart(w http.ResponseWriter, r *http.Request, status int, snap cart.Snapshot) {
	respondJSON(w, status, CartDTO{Snapshot: snap, Warning: cartNotice(r.Context())})
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	snap, err := sess.Cart.Refresh(ctx)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "get cart"))
		return
	}
	respondCart(w, r, http.StatusOK, snap)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Product.ID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product.id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	snap, err := sess.Cart.AddItem(ctx, req.Product, cart.AddOptions{
		Qty:           req.Quantity,
		SelectedSize:  req.SelectedSize,
		SelectedColor: req.SelectedColor,
	})
	if err != nil {
		handleError(w, r, errors.Wrap(err, "add cart item"))
		return
	}
	respondCart(w, r, http.StatusCreated, snap)
}

// PATCH /api/v1/cart/items/{key}
// A quantity of zero removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	key := chi.URLParam(r, "key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing_key", "line key is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil || *req.Quantity < 0 || *req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	snap, err := sess.Cart.UpdateQty(ctx, key, *req.Quantity)
	if err != nil {
		handleError(w, r, errors.Wrapf(err, "update cart line %s", key))
		return
	}
	respondCart(w, r, http.StatusOK, snap)
}

// DELETE /api/v1/cart/items/{key}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	key := chi.URLParam(r, "key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing_key", "line key is required")
		return
	}

	snap, err := sess.Cart.RemoveItem(ctx, key)
	if err != nil {
		handleError(w, r, errors.Wrapf(err, "remove cart line %s", key))
		return
	}
	respondCart(w, r, http.StatusOK, snap)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	snap, err := sess.Cart.Clear(ctx)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "clear cart"))
		return
	}
	respondCart(w, r, http.StatusOK, snap)
}

// POST /api/v1/session/logout
// The cart goes back to the lines stored for the anonymous session.
func (h *CartHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	sess.Cart.Logout(ctx)
	respondCart(w, r, http.StatusOK, sess.Cart.Snapshot(ctx))
}
