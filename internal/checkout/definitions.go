package checkout

import (
	"context"
	"time"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/journal"
)

// Backend is the part of the shop API the checkout drives.
type Backend interface {
	ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	ListAddresses(ctx context.Context) ([]domain.Address, error)
	GetPreferences(ctx context.Context) (*domain.Preferences, error)

	LatestDraft(ctx context.Context) (*domain.Order, error)
	StartOrder(ctx context.Context, items []domain.StartItem) (*domain.Order, error)
	SetShippingMethod(ctx context.Context, orderID, methodID int64) (*domain.Order, error)
	SetAddress(ctx context.Context, orderID, addressID int64) (*domain.Order, error)
	SetPaymentMethod(ctx context.Context, orderID, methodID int64) (*domain.Order, error)
	ConfirmOrder(ctx context.Context, orderID int64, req backend.ConfirmRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	CreateCheckoutSession(ctx context.Context, orderID int64, req backend.CheckoutSessionRequest) (*domain.HostedSession, error)
}

// CartResetter is told when an order was placed.
type CartResetter interface {
	AfterCheckout(ctx context.Context) error
}

type Journal interface {
	RecordStep(ctx context.Context, rec journal.StepRecord) error
	RecordConfirmed(ctx context.Context, c journal.Confirmation) error
}

// PaymentVerifier checks a hosted payment session with the provider.
type PaymentVerifier interface {
	VerifyPaid(ctx context.Context, sessionID string) error
}

type BackendHandler struct {
	api     Backend
	timeout time.Duration
}

func NewBackendHandler(api Backend, timeout time.Duration) *BackendHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BackendHandler{
		api:     api,
		timeout: timeout,
	}
}

func (h *BackendHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}
