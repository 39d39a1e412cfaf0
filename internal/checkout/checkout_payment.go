package checkout

import (
	"context"
	"fmt"
)

func (f *Flow) applyPaymentMethod(ctx context.Context, methodID int64) (compensation, error) {
	if f.order == nil {
		return nil, ErrNoOrder
	}
	orderID, prev := f.order.ID, f.order.PaymentMethod

	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	order, err := f.api.api.SetPaymentMethod(callCtx, orderID, methodID)
	if err != nil {
		return nil, fmt.Errorf("failed to set payment method: %w", err)
	}
	f.order = order
	return f.restoreField(orderID, prev, methodID, f.api.api.SetPaymentMethod), nil
}
