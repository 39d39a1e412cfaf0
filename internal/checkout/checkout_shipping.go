package checkout

import (
	"context"
	"fmt"
)

func (f *Flow) applyShippingMethod(ctx context.Context, methodID int64) (compensation, error) {
	if f.order == nil {
		return nil, ErrNoOrder
	}
	orderID, prev := f.order.ID, f.order.ShippingMethod

	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	order, err := f.api.api.SetShippingMethod(callCtx, orderID, methodID)
	if err != nil {
		return nil, fmt.Errorf("failed to set shipping method: %w", err)
	}
	f.order = order
	return f.restoreField(orderID, prev, methodID, f.api.api.SetShippingMethod), nil
}
