package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/boutique/storefront/internal/domain"
	"golang.org/x/sync/errgroup"
)

// LoadForm fetches the checkout options concurrently and waits for all of
// them. Whatever loaded is kept; failures come back joined.
func (f *Flow) LoadForm(ctx context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, cancel := f.api.withTimeout(ctx)
	defer cancel()

	var (
		g        errgroup.Group
		errs     [4]error
		shipping []domain.ShippingMethod
		payment  []domain.PaymentMethod
		addrs    []domain.Address
		prefs    *domain.Preferences
	)

	// each goroutine reports through errs so one failure never cancels the rest
	g.Go(func() error {
		v, err := f.api.api.ListShippingMethods(ctx)
		if err != nil {
			errs[0] = fmt.Errorf("failed to load shipping methods: %w", err)
			return nil
		}
		shipping = v
		return nil
	})
	g.Go(func() error {
		v, err := f.api.api.ListPaymentMethods(ctx)
		if err != nil {
			errs[1] = fmt.Errorf("failed to load payment methods: %w", err)
			return nil
		}
		payment = v
		return nil
	})
	g.Go(func() error {
		v, err := f.api.api.ListAddresses(ctx)
		if err != nil {
			errs[2] = fmt.Errorf("failed to load addresses: %w", err)
			return nil
		}
		addrs = v
		return nil
	})
	g.Go(func() error {
		v, err := f.api.api.GetPreferences(ctx)
		if err != nil {
			errs[3] = fmt.Errorf("failed to load preferences: %w", err)
			return nil
		}
		prefs = v
		return nil
	})
	_ = g.Wait()

	if errs[0] == nil {
		f.form.ShippingMethods = activeShipping(shipping)
	}
	if errs[1] == nil {
		f.form.PaymentMethods = activePayment(payment)
	}
	if errs[2] == nil {
		f.form.Addresses = addrs
	}
	if errs[3] == nil {
		f.form.Preferences = prefs
	}
	f.applyDefaults()

	err := errors.Join(errs[:]...)
	if err != nil {
		f.log.WithError(err).Warn("checkout form loaded partially")
	}
	return f.state(), err
}

// loadMethods fetches the shipping and payment methods the form has not
// loaded yet. Pickup and hosted payment are decided from them, so a submit or
// confirm on a flow that never showed the form loads them first.
func (f *Flow) loadMethods(ctx context.Context) error {
	if f.form.ShippingMethods != nil && f.form.PaymentMethods != nil {
		return nil
	}

	ctx, cancel := f.api.withTimeout(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	var (
		shipping []domain.ShippingMethod
		payment  []domain.PaymentMethod
	)
	if f.form.ShippingMethods == nil {
		g.Go(func() error {
			v, err := f.api.api.ListShippingMethods(gctx)
			if err != nil {
				return fmt.Errorf("failed to load shipping methods: %w", err)
			}
			shipping = activeShipping(v)
			return nil
		})
	}
	if f.form.PaymentMethods == nil {
		g.Go(func() error {
			v, err := f.api.api.ListPaymentMethods(gctx)
			if err != nil {
				return fmt.Errorf("failed to load payment methods: %w", err)
			}
			payment = activePayment(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if shipping != nil {
		f.form.ShippingMethods = shipping
	}
	if payment != nil {
		f.form.PaymentMethods = payment
	}
	return nil
}

// applyDefaults pre-selects the shopper's preferred options for anything still
// unselected, as long as the option is on offer.
func (f *Flow) applyDefaults() {
	prefs := f.form.Preferences
	if prefs == nil {
		return
	}
	if f.selection.ShippingMethodID == nil && prefs.DefaultShippingMethod != nil {
		for _, m := range f.form.ShippingMethods {
			if m.ID == *prefs.DefaultShippingMethod {
				f.selection.ShippingMethodID = ptr(m.ID)
				break
			}
		}
	}
	if f.selection.PaymentMethodID == nil && prefs.DefaultPaymentMethod != nil {
		for _, m := range f.form.PaymentMethods {
			if m.ID == *prefs.DefaultPaymentMethod {
				f.selection.PaymentMethodID = ptr(m.ID)
				break
			}
		}
	}
	if f.selection.AddressID == nil && prefs.DefaultAddress != nil {
		for _, a := range f.form.Addresses {
			if a.ID == *prefs.DefaultAddress {
				f.selection.AddressID = ptr(a.ID)
				break
			}
		}
	}
}

func activeShipping(in []domain.ShippingMethod) []domain.ShippingMethod {
	out := make([]domain.ShippingMethod, 0, len(in))
	for _, m := range in {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

func activePayment(in []domain.PaymentMethod) []domain.PaymentMethod {
	out := make([]domain.PaymentMethod, 0, len(in))
	for _, m := range in {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

func ptr(v int64) *int64 {
	return &v
}
