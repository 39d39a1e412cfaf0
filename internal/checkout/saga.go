package checkout

import (
	"context"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/journal"
	"github.com/sirupsen/logrus"
)

const (
	stepMethods       = "methods"
	stepStart         = "start"
	stepShipping      = "shipping_method"
	stepAddress       = "address"
	stepPayment       = "payment_method"
	stepConfirm       = "confirm"
	stepHostedSession = "hosted_session"
	stepHostedReturn  = "hosted_return"
	stepCancel        = "cancel"
)

const (
	outcomeOK                 = "ok"
	outcomeFailed             = "failed"
	outcomeSkipped            = "skipped"
	outcomeCompensated        = "compensated"
	outcomeCompensationFailed = "compensation_failed"
)

// compensation undoes a completed step. It runs on a context that outlives
// the caller's cancellation.
type compensation func(ctx context.Context) error

type sagaStep struct {
	name string
	run  func(ctx context.Context) (compensation, error)
}

type pendingCompensation struct {
	step string
	fn   compensation
}

// runSaga executes steps strictly in order. On the first failure the
// compensations of the completed steps run in reverse, best effort.
func (f *Flow) runSaga(ctx context.Context, attemptID string, steps []sagaStep) error {
	var undo []pendingCompensation
	for _, s := range steps {
		comp, err := s.run(ctx)
		if err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{
				"step":        s.name,
				"status_code": backend.StatusCode(err),
				"attempt":     attemptID,
			}).Warn("checkout step failed")
			f.metrics.CheckoutStep(s.name, outcomeFailed)
			f.recordStep(ctx, attemptID, s.name, outcomeFailed, err.Error(), journal.AttemptStatusFailed)
			f.compensate(ctx, attemptID, undo)
			return &StepError{Step: s.name, Err: err}
		}
		f.metrics.CheckoutStep(s.name, outcomeOK)
		f.recordStep(ctx, attemptID, s.name, outcomeOK, "", journal.AttemptStatusInProgress)
		if comp != nil {
			undo = append(undo, pendingCompensation{step: s.name, fn: comp})
		}
	}
	return nil
}

func (f *Flow) compensate(ctx context.Context, attemptID string, undo []pendingCompensation) {
	ctx = context.WithoutCancel(ctx)
	for i := len(undo) - 1; i >= 0; i-- {
		c := undo[i]
		if err := c.fn(ctx); err != nil {
			f.log.WithError(err).WithField("step", c.step).Error("checkout compensation failed")
			f.metrics.CheckoutStep(c.step, outcomeCompensationFailed)
			f.recordStep(ctx, attemptID, c.step, outcomeCompensationFailed, err.Error(), journal.AttemptStatusFailed)
			continue
		}
		f.log.WithField("step", c.step).Info("checkout step compensated")
		f.metrics.CheckoutStep(c.step, outcomeCompensated)
		f.recordStep(ctx, attemptID, c.step, outcomeCompensated, "", journal.AttemptStatusFailed)
	}
}

type orderSetter func(ctx context.Context, orderID, id int64) (*domain.Order, error)

// restoreField re-applies the value a draft held before a set_* step. Nothing
// needs undoing when the draft had no value or the same one.
func (f *Flow) restoreField(orderID int64, prev *int64, next int64, set orderSetter) compensation {
	if prev == nil || *prev == next {
		return nil
	}
	old := *prev
	return func(ctx context.Context) error {
		callCtx, cancel := f.api.withTimeout(ctx)
		defer cancel()
		order, err := set(callCtx, orderID, old)
		if err != nil {
			return err
		}
		f.order = order
		return nil
	}
}

// recordStep writes to the journal when one is configured. Journal failures
// never fail the checkout.
func (f *Flow) recordStep(ctx context.Context, attemptID, step, outcome, detail string, status journal.AttemptStatus) {
	if f.journal == nil || attemptID == "" {
		return
	}
	var orderID int64
	if f.order != nil {
		orderID = f.order.ID
	}
	err := f.journal.RecordStep(context.WithoutCancel(ctx), journal.StepRecord{
		AttemptID: attemptID,
		SessionID: f.sessionID,
		OrderID:   orderID,
		Step:      step,
		Outcome:   outcome,
		Detail:    detail,
		Status:    status,
	})
	if err != nil {
		f.log.WithError(err).WithField("step", step).Warn("failed to journal checkout step")
	}
}
