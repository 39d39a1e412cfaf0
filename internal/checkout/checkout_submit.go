package checkout

import (
	"context"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/journal"
	"github.com/google/uuid"
)

// Submit moves the checkout from FORM to REVIEW by building the draft order
// step by step. On failure the completed steps are compensated and the flow
// stays in FORM.
func (f *Flow) Submit(ctx context.Context, items domain.Lines) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadMethods(ctx); err != nil {
		f.log.WithError(err).WithField("status_code", backend.StatusCode(err)).Warn("checkout methods could not be loaded")
		return f.state(), &StepError{Step: stepMethods, Err: err}
	}
	if err := f.validate(); err != nil {
		return f.state(), err
	}
	if _, ok := f.shippingMethod(); !ok {
		return f.state(), ErrUnknownMethod
	}
	if _, ok := f.findPaymentMethod(*f.selection.PaymentMethodID); !ok {
		return f.state(), ErrUnknownMethod
	}
	if len(items) == 0 {
		return f.state(), ErrEmptyCart
	}

	attemptID := uuid.NewString()
	sel := f.selection
	pickup := f.requiresPickup()

	steps := []sagaStep{
		{name: stepStart, run: func(ctx context.Context) (compensation, error) {
			return f.ensureDraft(ctx, items)
		}},
		{name: stepShipping, run: func(ctx context.Context) (compensation, error) {
			return f.applyShippingMethod(ctx, *sel.ShippingMethodID)
		}},
	}
	if !pickup {
		steps = append(steps, sagaStep{name: stepAddress, run: func(ctx context.Context) (compensation, error) {
			return f.applyAddress(ctx, *sel.AddressID)
		}})
	}
	steps = append(steps, sagaStep{name: stepPayment, run: func(ctx context.Context) (compensation, error) {
		return f.applyPaymentMethod(ctx, *sel.PaymentMethodID)
	}})

	f.step = StepForm
	if err := f.runSaga(ctx, attemptID, steps); err != nil {
		return f.state(), err
	}
	if pickup {
		f.metrics.CheckoutStep(stepAddress, outcomeSkipped)
		f.recordStep(ctx, attemptID, stepAddress, outcomeSkipped, "pickup", journal.AttemptStatusInProgress)
	}

	f.step = StepReview
	f.attemptID = attemptID
	f.recordStep(ctx, attemptID, StepReview.String(), outcomeOK, "", journal.AttemptStatusReviewed)
	f.log.WithField("order_id", f.order.ID).Info("checkout ready for review")
	return f.state(), nil
}
