package session

import (
	"time"

	"github.com/boutique/storefront/internal/cart"
	"github.com/boutique/storefront/internal/checkout"
	"github.com/boutique/storefront/internal/metrics"
	"github.com/boutique/storefront/internal/store"
	"github.com/sirupsen/logrus"
)

// Backend is the shop API as both the cart and the checkout use it.
type Backend interface {
	cart.Backend
	checkout.Backend
}

type Deps struct {
	Backend Backend
	Store   store.Store
	// Journal and Verifier are optional. Leave them nil, not typed nil.
	Journal     checkout.Journal
	Verifier    checkout.PaymentVerifier
	StepTimeout time.Duration
	MarkerTTL   time.Duration
	Log         logrus.FieldLogger
	Metrics     *metrics.Metrics
}

// NewFactory wires a cart container and a checkout flow per session. The flow
// resets the session's own cart once an order is placed.
func NewFactory(d Deps) Factory {
	handler := checkout.NewBackendHandler(d.Backend, d.StepTimeout)
	return func(id string) *Session {
		c := cart.NewContainer(id, d.Backend, d.Store, d.Log, d.Metrics)
		flow := checkout.NewFlow(id, checkout.Deps{
			Backend:   handler,
			Cart:      c,
			Store:     d.Store,
			Journal:   d.Journal,
			Verifier:  d.Verifier,
			MarkerTTL: d.MarkerTTL,
			Log:       d.Log,
			Metrics:   d.Metrics,
		})
		return &Session{ID: id, Cart: c, Checkout: flow}
	}
}
