package checkout

import (
	"context"
	"fmt"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
)

// ensureDraft reuses the cached draft or the backend's latest one when it
// holds the same items, and otherwise starts a new draft. A failed lookup of
// the latest draft counts as no draft. Only a draft started here is canceled
// on compensation.
func (f *Flow) ensureDraft(ctx context.Context, items domain.Lines) (compensation, error) {
	candidate := f.order
	if !candidate.IsDraft() {
		callCtx, cancel := f.api.withTimeout(ctx)
		latest, err := f.api.api.LatestDraft(callCtx)
		cancel()
		if err != nil {
			f.log.WithError(err).WithField("status_code", backend.StatusCode(err)).Warn("latest draft lookup failed, starting a new draft")
			latest = nil
		}
		candidate = latest
	}
	if candidate.IsDraft() && sameItems(candidate, items) {
		f.order = candidate
		return nil, nil
	}

	callCtx, cancel := f.api.withTimeout(ctx)
	defer cancel()
	order, err := f.api.api.StartOrder(callCtx, items.StartItems())
	if err != nil {
		return nil, fmt.Errorf("failed to start order: %w", err)
	}
	f.order = order
	f.log.WithField("order_id", order.ID).Info("draft order started")

	orderID := order.ID
	return func(ctx context.Context) error {
		callCtx, cancel := f.api.withTimeout(ctx)
		defer cancel()
		if _, err := f.api.api.CancelOrder(callCtx, orderID); err != nil {
			return fmt.Errorf("failed to cancel draft %d: %w", orderID, err)
		}
		f.order = nil
		return nil
	}, nil
}

// sameItems compares the draft's items with the cart by product, size and
// quantity.
func sameItems(order *domain.Order, items domain.Lines) bool {
	want := make(map[string]int, len(items))
	for _, l := range items {
		want[itemKey(l.ProductID, l.SelectedSize)] += l.Quantity
	}
	have := make(map[string]int, len(order.Items))
	for _, it := range order.Items {
		have[itemKey(it.ProductID, it.VariantSize)] += it.Quantity
	}
	if len(want) != len(have) {
		return false
	}
	for k, q := range want {
		if have[k] != q {
			return false
		}
	}
	return true
}

func itemKey(productID int64, size string) string {
	return fmt.Sprintf("%d::%s", productID, size)
}
