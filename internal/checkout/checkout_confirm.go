package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/journal"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const sessionMarkerPrefix = "stripe_session_processed_"

type ReturnURLs struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// ConfirmResult carries either the placed order or, for a hosted payment, the
// page to redirect the shopper to.
type ConfirmResult struct {
	Order    *domain.Order         `json:"order,omitempty"`
	Redirect *domain.HostedSession `json:"redirect,omitempty"`
}

func (f *Flow) Confirm(ctx context.Context, urls ReturnURLs) (*ConfirmResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepReview {
		return nil, ErrNotReviewed
	}
	if !f.order.IsDraft() {
		return nil, ErrNoOrder
	}

	if err := f.loadMethods(ctx); err != nil {
		f.log.WithError(err).WithField("status_code", backend.StatusCode(err)).Warn("checkout methods could not be loaded")
		return nil, &StepError{Step: stepMethods, Err: err}
	}
	method, known := f.paymentMethod()
	if !known {
		return nil, ErrUnknownMethod
	}
	if !domain.CanTransitionTo(f.order.Status, method.StatusAfterConfirm()) {
		return nil, IllegalTransitionError
	}

	if method.IsHosted() {
		return f.startHostedPayment(ctx, urls)
	}

	orderID := f.order.ID
	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	order, err := f.api.api.ConfirmOrder(callCtx, orderID, backend.ConfirmRequest{Confirm: true})
	if err != nil {
		f.log.WithError(err).WithField("status_code", backend.StatusCode(err)).Warn("order confirm failed")
		f.metrics.CheckoutStep(stepConfirm, outcomeFailed)
		f.recordStep(ctx, f.attemptID, stepConfirm, outcomeFailed, err.Error(), journal.AttemptStatusFailed)
		return nil, &StepError{Step: stepConfirm, Err: err}
	}
	f.metrics.CheckoutStep(stepConfirm, outcomeOK)

	f.finish(ctx, order, "")
	return &ConfirmResult{Order: order}, nil
}

// startHostedPayment opens a hosted card page. The order stays DRAFT until the
// shopper comes back through HandleReturn.
func (f *Flow) startHostedPayment(ctx context.Context, urls ReturnURLs) (*ConfirmResult, error) {
	if urls.SuccessURL == "" {
		return nil, &ValidationError{Missing: []string{"success_url"}}
	}
	cancelURL := urls.CancelURL
	if cancelURL == "" {
		cancelURL = urls.SuccessURL
	}

	orderID := f.order.ID
	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	hosted, err := f.api.api.CreateCheckoutSession(callCtx, orderID, backend.CheckoutSessionRequest{
		SuccessURL: withReturnParams(urls.SuccessURL, orderID),
		CancelURL:  cancelURL,
	})
	if err != nil {
		f.log.WithError(err).WithField("status_code", backend.StatusCode(err)).Warn("hosted session failed")
		f.metrics.CheckoutStep(stepHostedSession, outcomeFailed)
		f.recordStep(ctx, f.attemptID, stepHostedSession, outcomeFailed, err.Error(), journal.AttemptStatusFailed)
		return nil, &StepError{Step: stepHostedSession, Err: err}
	}
	f.metrics.CheckoutStep(stepHostedSession, outcomeOK)
	f.recordStep(ctx, f.attemptID, stepHostedSession, outcomeOK, hosted.ID, journal.AttemptStatusReviewed)
	return &ConfirmResult{Order: f.order, Redirect: hosted}, nil
}

// withReturnParams appends the provider's session placeholder and the order id.
// The placeholder must stay unescaped for the provider to substitute it.
func withReturnParams(base string, orderID int64) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "session_id={CHECKOUT_SESSION_ID}&order_id=" + strconv.FormatInt(orderID, 10)
}

// HandleReturn confirms an order after the hosted payment page sent the
// shopper back. A session id is processed at most once.
func (f *Flow) HandleReturn(ctx context.Context, sessionID string, orderID int64) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var missing []string
	if sessionID == "" {
		missing = append(missing, "session_id")
	}
	if orderID <= 0 {
		missing = append(missing, "order_id")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	marker := sessionMarkerPrefix + sessionID
	first, err := f.kv.SetNX(ctx, marker, []byte(strconv.FormatInt(orderID, 10)), f.markerTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to mark hosted session: %w", err)
	}
	if !first {
		f.log.WithField("checkout_session", sessionID).Info("hosted session already processed")
		f.metrics.HostedReturn("duplicate")
		return nil, ErrAlreadyProcessed
	}

	if f.verifier != nil {
		if err := f.verifier.VerifyPaid(ctx, sessionID); err != nil {
			// nothing was confirmed, so the return may be retried
			if errDelete := f.kv.Delete(context.WithoutCancel(ctx), marker); errDelete != nil {
				f.log.WithError(errDelete).Warn("failed to release hosted session marker")
			}
			f.metrics.HostedReturn("unverified")
			return nil, err
		}
	}

	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	order, err := f.api.api.ConfirmOrder(callCtx, orderID, backend.ConfirmRequest{
		Confirm:           true,
		CheckoutSessionID: sessionID,
	})
	if err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{
			"order_id":         orderID,
			"checkout_session": sessionID,
			"status_code":      backend.StatusCode(err),
		}).Error("hosted payment confirm failed")
		f.metrics.HostedReturn("failed")
		return nil, &StepError{Step: stepHostedReturn, Err: err}
	}
	f.metrics.HostedReturn("confirmed")

	f.finish(ctx, order, sessionID)
	return order, nil
}

// finish journals the placed order, resets the cart and starts a fresh flow.
func (f *Flow) finish(ctx context.Context, order *domain.Order, checkoutSessionID string) {
	ctx = context.WithoutCancel(ctx)
	attemptID := f.attemptID
	if attemptID == "" {
		attemptID = uuid.NewString()
	}

	if f.journal != nil {
		err := f.journal.RecordConfirmed(ctx, journal.Confirmation{
			AttemptID:         attemptID,
			SessionID:         f.sessionID,
			OrderID:           order.ID,
			Status:            order.Status.String(),
			GrandTotal:        order.GrandTotal.StringFixed(2),
			Currency:          order.Currency,
			CheckoutSessionID: checkoutSessionID,
		})
		if err != nil {
			f.log.WithError(err).WithField("order_id", order.ID).Error("failed to journal confirmed order")
		}
	}

	if f.cart != nil {
		if err := f.cart.AfterCheckout(ctx); err != nil {
			f.log.WithError(err).Warn("failed to reset cart after checkout")
		}
	}

	f.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("order placed")
	f.reset()
}

// Cancel cancels the cached order and returns the flow to the form.
func (f *Flow) Cancel(ctx context.Context) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.order == nil {
		return nil, ErrNoOrder
	}
	if !f.order.Status.CanCancel() {
		return nil, IllegalTransitionError
	}

	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	order, err := f.api.api.CancelOrder(callCtx, f.order.ID)
	if err != nil {
		f.metrics.CheckoutStep(stepCancel, outcomeFailed)
		if errors.Is(err, backend.ErrBadRequest) {
			return nil, fmt.Errorf("%w: %v", IllegalTransitionError, err)
		}
		return nil, &StepError{Step: stepCancel, Err: err}
	}
	f.metrics.CheckoutStep(stepCancel, outcomeOK)
	f.recordStep(ctx, f.attemptID, stepCancel, outcomeOK, "", journal.AttemptStatusFailed)
	f.reset()
	return order, nil
}
