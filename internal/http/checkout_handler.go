package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/boutique/storefront/internal/checkout"
	"github.com/boutique/storefront/internal/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		timeout: timeout,
	}
}

type CheckoutStateDTO struct {
	checkout.State
	Warning string `json:"warning,omitempty"`
}

func newCheckoutState(r *http.Request, st checkout.State) CheckoutStateDTO {
	return CheckoutStateDTO{State: st, Warning: cartNotice(r.Context())}
}

// GET /api/v1/checkout
// Loads the form options. A partial failure still answers with what loaded.
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	st, err := sess.Checkout.LoadForm(ctx)
	dto := newCheckoutState(r, st)
	if err != nil {
		logging.FromContext(r.Context(), logrus.StandardLogger()).WithError(err).Warn("checkout form loaded partially")
		if dto.Warning == "" {
			dto.Warning = "some checkout options could not be loaded"
		}
	}
	respondJSON(w, http.StatusOK, dto)
}

// PUT /api/v1/checkout/selection
func (h *CheckoutHandler) Select(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	var sel checkout.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	respondJSON(w, http.StatusOK, newCheckoutState(r, sess.Checkout.Select(sel)))
}

// POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	st, err := sess.Checkout.Submit(ctx, sess.Cart.Lines(ctx))
	if err != nil {
		handleError(w, r, errors.Wrap(err, "submit checkout"))
		return
	}
	respondJSON(w, http.StatusOK, newCheckoutState(r, st))
}

// POST /api/v1/checkout/confirm
// For a hosted payment the answer carries the page to redirect to.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	var urls checkout.ReturnURLs
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&urls); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	res, err := sess.Checkout.Confirm(ctx, urls)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "confirm checkout"))
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GET /api/v1/checkout/return?session_id=&order_id=
func (h *CheckoutHandler) Return(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	q := r.URL.Query()
	var orderID int64
	if raw := q.Get("order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a positive integer")
			return
		}
		orderID = id
	}

	order, err := sess.Checkout.HandleReturn(ctx, q.Get("session_id"), orderID)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "handle payment return"))
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/checkout/cancel
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFrom(r.Context())
	if sess == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session is not available")
		return
	}

	order, err := sess.Checkout.Cancel(ctx)
	if err != nil {
		handleError(w, r, errors.Wrap(err, "cancel checkout"))
		return
	}
	respondJSON(w, http.StatusOK, order)
}
