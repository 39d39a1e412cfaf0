package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/cart"
	"github.com/boutique/storefront/internal/checkout"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, "")
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// handleError converts an error from the cart, the checkout or the backend
// into an HTTP answer. Unexpected errors are logged with their stack.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stepErr    *checkout.StepError
		validErr   *checkout.ValidationError
		partialErr *cart.PartialClearError
		apiErr     *backend.APIError
	)

	switch {
	case errors.As(err, &stepErr):
		respondErrorDetails(w, http.StatusBadGateway, "checkout_failed", stepErr.UserMessage(), stepErr.Step)
	case errors.As(err, &validErr):
		respondErrorDetails(w, http.StatusUnprocessableEntity, "missing_fields", "required fields are missing", strings.Join(validErr.Missing, ","))
	case errors.As(err, &partialErr):
		respondErrorDetails(w, http.StatusBadGateway, "partial_clear", "cart was only partially cleared",
			fmt.Sprintf("%d deleted, %d remaining", partialErr.Deleted, partialErr.Remaining))

	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", "cart is empty")
	case errors.Is(err, checkout.ErrNotReviewed):
		respondError(w, http.StatusConflict, "not_reviewed", "checkout has not been reviewed")
	case errors.Is(err, checkout.ErrNoOrder):
		respondError(w, http.StatusConflict, "no_order", "checkout has no draft order")
	case errors.Is(err, checkout.IllegalTransitionError):
		respondError(w, http.StatusConflict, "illegal_transition", "order cannot move to the requested status")
	case errors.Is(err, checkout.ErrAlreadyProcessed):
		respondError(w, http.StatusConflict, "already_processed", "payment session was already processed")
	case errors.Is(err, checkout.ErrPaymentNotCompleted):
		respondError(w, http.StatusPaymentRequired, "payment_not_completed", "payment is not completed")
	case errors.Is(err, checkout.ErrUnknownMethod):
		respondError(w, http.StatusUnprocessableEntity, "unknown_method", "selected shipping or payment method is not offered")

	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
	case errors.Is(err, domain.ErrOutOfStock):
		respondError(w, http.StatusConflict, "out_of_stock", "product is out of stock")
	case errors.Is(err, domain.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "line_not_found", "cart line not found")
	case errors.Is(err, domain.ErrInvalidAddress):
		respondErrorDetails(w, http.StatusBadRequest, "invalid_address", "address is invalid", err.Error())

	case errors.As(err, &apiErr):
		handleBackendError(w, apiErr)
	case errors.Is(err, backend.ErrUnavailable), errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "backend is unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "backend did not answer in time")
	default:
		logging.FromContext(r.Context(), logrus.StandardLogger()).
			WithField("stack", fmt.Sprintf("%+v", err)).
			Error("unhandled error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func handleBackendError(w http.ResponseWriter, apiErr *backend.APIError) {
	var status int
	var code string

	switch {
	case errors.Is(apiErr, backend.ErrBadRequest):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(apiErr, backend.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(apiErr, backend.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(apiErr, backend.ErrForbidden):
		status, code = http.StatusForbidden, "permission_denied"
	case apiErr.StatusCode == http.StatusTooManyRequests:
		status, code = http.StatusTooManyRequests, "rate_limit_exceeded"
	case errors.Is(apiErr, backend.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	default:
		status, code = http.StatusBadGateway, "backend_error"
	}

	respondError(w, status, code, apiErr.Detail)
}
