package http

import (
	"context"
	"net/http"
	"time"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/pkg/errors"
)

type OrdersAPI interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}

type OrdersHandler struct {
	api     OrdersAPI
	timeout time.Duration
}

func NewOrdersHandler(api OrdersAPI, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		api:     api,
		timeout: timeout,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.api.ListOrders(ctx)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "list orders"))
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !backend.Authenticated(r.Context()) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.api.GetOrder(ctx, id)
	if err != nil {
		handleError(w, r, errors.Wrapf(err, "get order %d", id))
		return
	}
	respondJSON(w, http.StatusOK, order)
}
