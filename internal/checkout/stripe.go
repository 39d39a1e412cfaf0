package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
)

// StripeVerifier asks Stripe whether a checkout session was paid before the
// order is confirmed.
type StripeVerifier struct {
	client session.Client
}

func NewStripeVerifier(secretKey string) *StripeVerifier {
	return NewStripeVerifierWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

func NewStripeVerifierWithBackend(secretKey string, b stripe.Backend) *StripeVerifier {
	return &StripeVerifier{client: session.Client{B: b, Key: secretKey}}
}

func (v *StripeVerifier) VerifyPaid(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := v.client.Get(sessionID, params)
	if err != nil {
		return fmt.Errorf("failed to fetch checkout session %s: %w", sessionID, err)
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return fmt.Errorf("%w: session %s is %s", ErrPaymentNotCompleted, sessionID, s.PaymentStatus)
	}
	return nil
}
