package checkout

import (
	"context"
	"fmt"
)

func (f *Flow) applyAddress(ctx context.Context, addressID int64) (compensation, error) {
	if f.order == nil {
		return nil, ErrNoOrder
	}
	orderID, prev := f.order.ID, f.order.ShippingAddress

	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	order, err := f.api.api.SetAddress(callCtx, orderID, addressID)
	if err != nil {
		return nil, fmt.Errorf("failed to set address: %w", err)
	}
	f.order = order
	return f.restoreField(orderID, prev, addressID, f.api.api.SetAddress), nil
}
