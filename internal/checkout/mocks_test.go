package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/journal"
	"github.com/boutique/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
)

// MockBackend plays the shop API: it keeps one server-side order and prices
// it the way the backend does.
type MockBackend struct {
	mu    sync.Mutex
	Calls []string

	ShippingMethods []domain.ShippingMethod
	PaymentMethods  []domain.PaymentMethod
	Addresses       []domain.Address
	Prefs           *domain.Preferences
	Latest          *domain.Order
	ShippingCosts   map[int64]decimal.Decimal
	ConfirmStatus   domain.OrderStatus
	Hosted          *domain.HostedSession
	Fail            map[string]error

	ConfirmReqs []backend.ConfirmRequest
	SessionReqs []backend.CheckoutSessionRequest

	order  *domain.Order
	nextID int64
}

func newMockBackend() *MockBackend {
	return &MockBackend{
		ShippingMethods: []domain.ShippingMethod{
			{ID: 3, Code: "STANDARD", IsActive: true, BaseCost: decimal.RequireFromString("15.00")},
			{ID: 4, Code: "PICKUP", IsActive: true, RequiresPickupPoint: true},
			{ID: 5, Code: "EXPRESS", IsActive: true, BaseCost: decimal.RequireFromString("30.00")},
			{ID: 6, Code: "LEGACY", IsActive: false},
		},
		PaymentMethods: []domain.PaymentMethod{
			{ID: 1, Code: "COD", Type: domain.PaymentTypeCOD, IsActive: true},
			{ID: 2, Code: "TRANSFER", Type: domain.PaymentTypeOffline, IsActive: true},
			{ID: 9, Code: "STRIPE", Type: domain.PaymentTypeGateway, GatewayProvider: "stripe", IsActive: true},
		},
		Addresses: []domain.Address{{ID: 7, City: "La Paz"}, {ID: 8, City: "El Alto"}},
		ShippingCosts: map[int64]decimal.Decimal{
			3: decimal.RequireFromString("15.00"),
			5: decimal.RequireFromString("30.00"),
		},
		ConfirmStatus: domain.OrderStatusPendingPayment,
		Hosted:        &domain.HostedSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"},
		Fail:          map[string]error{},
		nextID:        0,
	}
}

func (m *MockBackend) call(name string) error {
	m.Calls = append(m.Calls, name)
	base := name
	for i, c := range name {
		if c == ':' {
			base = name[:i]
			break
		}
	}
	if err, ok := m.Fail[base]; ok {
		return err
	}
	return nil
}

func (m *MockBackend) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockBackend) snapshot() *domain.Order {
	if m.order == nil {
		return nil
	}
	o := *m.order
	o.Items = append([]domain.OrderItem(nil), m.order.Items...)
	return &o
}

func (m *MockBackend) reprice() {
	o := m.order
	o.GrandTotal = o.Subtotal.Add(o.ShippingCost).Add(o.PaymentFee)
}

func (m *MockBackend) ListShippingMethods(context.Context) ([]domain.ShippingMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("list_shipping_methods"); err != nil {
		return nil, err
	}
	return m.ShippingMethods, nil
}

func (m *MockBackend) ListPaymentMethods(context.Context) ([]domain.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("list_payment_methods"); err != nil {
		return nil, err
	}
	return m.PaymentMethods, nil
}

func (m *MockBackend) ListAddresses(context.Context) ([]domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("list_addresses"); err != nil {
		return nil, err
	}
	return m.Addresses, nil
}

func (m *MockBackend) GetPreferences(context.Context) (*domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("get_preferences"); err != nil {
		return nil, err
	}
	return m.Prefs, nil
}

func (m *MockBackend) LatestDraft(context.Context) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("latest_draft"); err != nil {
		return nil, err
	}
	if m.Latest == nil {
		return nil, nil
	}
	m.order = m.Latest
	m.Latest = nil
	return m.snapshot(), nil
}

func (m *MockBackend) StartOrder(_ context.Context, items []domain.StartItem) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("start"); err != nil {
		return nil, err
	}
	m.nextID++
	o := &domain.Order{ID: m.nextID, Status: domain.OrderStatusDraft, Currency: "BOB"}
	for _, it := range items {
		price := decimal.RequireFromString("50.00")
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:    it.ProductID,
			VariantSize:  it.SizeLabel,
			Quantity:     it.Quantity,
			UnitPrice:    price,
			LineSubtotal: price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
		o.Subtotal = o.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		o.TotalItems += it.Quantity
	}
	m.order = o
	m.reprice()
	return m.snapshot(), nil
}

func (m *MockBackend) SetShippingMethod(_ context.Context, orderID, methodID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call(fmt.Sprintf("set_shipping_method:%d", methodID)); err != nil {
		return nil, err
	}
	if m.order == nil || m.order.ID != orderID {
		return nil, &backend.APIError{StatusCode: 404}
	}
	m.order.ShippingMethod = ptr(methodID)
	m.order.ShippingCost = m.ShippingCosts[methodID]
	m.reprice()
	return m.snapshot(), nil
}

func (m *MockBackend) SetAddress(_ context.Context, orderID, addressID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call(fmt.Sprintf("set_address:%d", addressID)); err != nil {
		return nil, err
	}
	if m.order == nil || m.order.ID != orderID {
		return nil, &backend.APIError{StatusCode: 404}
	}
	m.order.ShippingAddress = ptr(addressID)
	return m.snapshot(), nil
}

func (m *MockBackend) SetPaymentMethod(_ context.Context, orderID, methodID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call(fmt.Sprintf("set_payment_method:%d", methodID)); err != nil {
		return nil, err
	}
	if m.order == nil || m.order.ID != orderID {
		return nil, &backend.APIError{StatusCode: 404}
	}
	m.order.PaymentMethod = ptr(methodID)
	return m.snapshot(), nil
}

func (m *MockBackend) ConfirmOrder(_ context.Context, orderID int64, req backend.ConfirmRequest) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmReqs = append(m.ConfirmReqs, req)
	if err := m.call(fmt.Sprintf("confirm:%d", orderID)); err != nil {
		return nil, err
	}
	if m.order == nil || m.order.ID != orderID {
		return nil, &backend.APIError{StatusCode: 404}
	}
	m.order.Status = m.ConfirmStatus
	return m.snapshot(), nil
}

func (m *MockBackend) CancelOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call(fmt.Sprintf("cancel:%d", orderID)); err != nil {
		return nil, err
	}
	if m.order == nil || m.order.ID != orderID {
		return nil, &backend.APIError{StatusCode: 404}
	}
	m.order.Status = domain.OrderStatusCanceled
	return m.snapshot(), nil
}

func (m *MockBackend) CreateCheckoutSession(_ context.Context, orderID int64, req backend.CheckoutSessionRequest) (*domain.HostedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionReqs = append(m.SessionReqs, req)
	if err := m.call(fmt.Sprintf("create_checkout_session:%d", orderID)); err != nil {
		return nil, err
	}
	return m.Hosted, nil
}

type MockJournal struct {
	mu            sync.Mutex
	Steps         []journal.StepRecord
	Confirmations []journal.Confirmation
	Err           error
}

func (j *MockJournal) RecordStep(_ context.Context, rec journal.StepRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Steps = append(j.Steps, rec)
	return j.Err
}

func (j *MockJournal) RecordConfirmed(_ context.Context, c journal.Confirmation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Confirmations = append(j.Confirmations, c)
	return j.Err
}

func (j *MockJournal) outcomes(step string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, s := range j.Steps {
		if s.Step == step {
			out = append(out, s.Outcome)
		}
	}
	return out
}

type MockCart struct {
	Resets int
	Err    error
}

func (c *MockCart) AfterCheckout(context.Context) error {
	c.Resets++
	return c.Err
}

type MockVerifier struct {
	Calls []string
	Err   error
}

func (v *MockVerifier) VerifyPaid(_ context.Context, sessionID string) error {
	v.Calls = append(v.Calls, sessionID)
	return v.Err
}

type testFlow struct {
	flow    *Flow
	api     *MockBackend
	journal *MockJournal
	cart    *MockCart
	kv      *store.MemoryStore
}

func setupFlow(t *testing.T) *testFlow {
	return setupFlowWith(t, newMockBackend(), store.NewMemoryStore(), nil)
}

func setupFlowWith(t *testing.T, api *MockBackend, kv *store.MemoryStore, verifier PaymentVerifier) *testFlow {
	t.Cleanup(func() { kv.Close() })
	logger, _ := test.NewNullLogger()
	tf := &testFlow{api: api, journal: &MockJournal{}, cart: &MockCart{}, kv: kv}
	deps := Deps{
		Backend: NewBackendHandler(api, 0),
		Cart:    tf.cart,
		Store:   kv,
		Journal: tf.journal,
		Log:     logger,
	}
	if verifier != nil {
		deps.Verifier = verifier
	}
	tf.flow = NewFlow("sess-1", deps)
	return tf
}

// cartLines is a cart worth 100.00 at the mock's prices.
func cartLines() domain.Lines {
	return domain.Lines{{
		Key:          domain.LineKey(1, "M", ""),
		ProductID:    1,
		UnitPrice:    decimal.RequireFromString("50.00"),
		Quantity:     2,
		SelectedSize: "M",
	}}
}

func selection(shipping, address, payment int64) Selection {
	sel := Selection{ShippingMethodID: ptr(shipping), PaymentMethodID: ptr(payment)}
	if address > 0 {
		sel.AddressID = ptr(address)
	}
	return sel
}

func newStore() *store.MemoryStore {
	return store.NewMemoryStore()
}
