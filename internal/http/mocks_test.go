package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/metrics"
	"github.com/boutique/storefront/internal/session"
	"github.com/boutique/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
)

const cookieName = "shop_session-id"

var unitPrice = decimal.RequireFromString("50.00")

// MockShop is an in-memory shop backend: a server cart, one draft order and
// an address book.
type MockShop struct {
	mu sync.Mutex

	cart       []domain.ServerCartItem
	nextItem   int64
	MergeCalls int

	ShippingMethods []domain.ShippingMethod
	PaymentMethods  []domain.PaymentMethod
	Addresses       []domain.Address
	Prefs           domain.Preferences
	Orders          []domain.Order

	order *domain.Order
	// Fail makes the named call return the error.
	Fail map[string]error
}

func newMockShop() *MockShop {
	return &MockShop{
		nextItem: 100,
		ShippingMethods: []domain.ShippingMethod{
			{ID: 3, Code: "STANDARD", IsActive: true, BaseCost: decimal.RequireFromString("15.00")},
			{ID: 4, Code: "PICKUP", IsActive: true, RequiresPickupPoint: true},
		},
		PaymentMethods: []domain.PaymentMethod{
			{ID: 2, Code: "TRANSFER", Type: domain.PaymentTypeOffline, IsActive: true},
			{ID: 9, Code: "STRIPE", Type: domain.PaymentTypeGateway, GatewayProvider: "stripe", IsActive: true},
		},
		Addresses: []domain.Address{{ID: 7, City: "La Paz", Line1: "Av. Arce 100", Phone: "70000000"}},
		Fail:      map[string]error{},
	}
}

func (m *MockShop) fail(name string) error {
	return m.Fail[name]
}

func (m *MockShop) GetCart(context.Context) (*domain.ServerCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get_cart"); err != nil {
		return nil, err
	}
	return &domain.ServerCart{ID: 1, Items: append([]domain.ServerCartItem(nil), m.cart...)}, nil
}

func (m *MockShop) AddCartItem(_ context.Context, req backend.AddCartItemRequest) (*domain.ServerCartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("add_cart_item"); err != nil {
		return nil, err
	}
	return m.addItem(req.ProductID, req.SizeLabel, req.Quantity), nil
}

func (m *MockShop) addItem(productID int64, size string, qty int) *domain.ServerCartItem {
	for i := range m.cart {
		if m.cart[i].Product == productID && m.cart[i].SizeLabel == size {
			m.cart[i].Quantity += qty
			return &m.cart[i]
		}
	}
	m.nextItem++
	m.cart = append(m.cart, domain.ServerCartItem{
		ID:           m.nextItem,
		Product:      productID,
		ProductPrice: unitPrice,
		SizeLabel:    size,
		Quantity:     qty,
	})
	return &m.cart[len(m.cart)-1]
}

func (m *MockShop) UpdateCartItem(_ context.Context, itemID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cart {
		if m.cart[i].ID == itemID {
			m.cart[i].Quantity = quantity
			return nil
		}
	}
	return &backend.APIError{StatusCode: http.StatusNotFound, Detail: "Not found."}
}

func (m *MockShop) DeleteCartItem(_ context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cart {
		if m.cart[i].ID == itemID {
			m.cart = append(m.cart[:i], m.cart[i+1:]...)
			return nil
		}
	}
	return &backend.APIError{StatusCode: http.StatusNotFound, Detail: "Not found."}
}

func (m *MockShop) MergeCart(_ context.Context, items []domain.StartItem) (*backend.MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MergeCalls++
	if err := m.fail("merge"); err != nil {
		return nil, err
	}
	for _, it := range items {
		m.addItem(it.ProductID, it.SizeLabel, it.Quantity)
	}
	return &backend.MergeResult{OK: true, Count: len(items)}, nil
}

func (m *MockShop) ListShippingMethods(context.Context) ([]domain.ShippingMethod, error) {
	return m.ShippingMethods, m.fail("list_shipping_methods")
}

func (m *MockShop) ListPaymentMethods(context.Context) ([]domain.PaymentMethod, error) {
	return m.PaymentMethods, m.fail("list_payment_methods")
}

func (m *MockShop) ListAddresses(context.Context) ([]domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_addresses"); err != nil {
		return nil, err
	}
	return append([]domain.Address(nil), m.Addresses...), nil
}

func (m *MockShop) CreateAddress(_ context.Context, addr domain.Address) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr.ID = int64(len(m.Addresses) + 10)
	m.Addresses = append(m.Addresses, addr)
	return &addr, nil
}

func (m *MockShop) UpdateAddress(_ context.Context, id int64, addr domain.Address) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Addresses {
		if m.Addresses[i].ID == id {
			addr.ID = id
			m.Addresses[i] = addr
			return &addr, nil
		}
	}
	return nil, &backend.APIError{StatusCode: http.StatusNotFound, Detail: "Not found."}
}

func (m *MockShop) DeleteAddress(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Addresses {
		if m.Addresses[i].ID == id {
			m.Addresses = append(m.Addresses[:i], m.Addresses[i+1:]...)
			return nil
		}
	}
	return &backend.APIError{StatusCode: http.StatusNotFound, Detail: "Not found."}
}

func (m *MockShop) GetPreferences(context.Context) (*domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefs := m.Prefs
	return &prefs, m.fail("get_preferences")
}

func (m *MockShop) UpdatePreferences(_ context.Context, prefs domain.Preferences) (*domain.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prefs = prefs
	return &prefs, nil
}

func (m *MockShop) LatestDraft(context.Context) (*domain.Order, error) {
	return nil, nil
}

func (m *MockShop) StartOrder(_ context.Context, items []domain.StartItem) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("start"); err != nil {
		return nil, err
	}
	o := &domain.Order{ID: 1, Status: domain.OrderStatusDraft, Currency: "BOB"}
	for _, it := range items {
		line := unitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		o.Items = append(o.Items, domain.OrderItem{ProductID: it.ProductID, VariantSize: it.SizeLabel, Quantity: it.Quantity, UnitPrice: unitPrice, LineSubtotal: line})
		o.Subtotal = o.Subtotal.Add(line)
		o.TotalItems += it.Quantity
	}
	o.GrandTotal = o.Subtotal
	m.order = o
	return m.copyOrder(), nil
}

func (m *MockShop) SetShippingMethod(_ context.Context, _ int64, methodID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("set_shipping_method"); err != nil {
		return nil, err
	}
	for _, sm := range m.ShippingMethods {
		if sm.ID == methodID {
			m.order.ShippingMethod = &methodID
			m.order.ShippingCost = sm.BaseCost
			m.order.GrandTotal = m.order.Subtotal.Add(sm.BaseCost)
		}
	}
	return m.copyOrder(), nil
}

func (m *MockShop) SetAddress(_ context.Context, _ int64, addressID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("set_address"); err != nil {
		return nil, err
	}
	m.order.ShippingAddress = &addressID
	return m.copyOrder(), nil
}

func (m *MockShop) SetPaymentMethod(_ context.Context, _ int64, methodID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("set_payment_method"); err != nil {
		return nil, err
	}
	m.order.PaymentMethod = &methodID
	return m.copyOrder(), nil
}

func (m *MockShop) ConfirmOrder(_ context.Context, _ int64, _ backend.ConfirmRequest) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("confirm"); err != nil {
		return nil, err
	}
	m.order.Status = domain.OrderStatusPendingPayment
	m.cart = nil
	m.Orders = append(m.Orders, *m.order)
	return m.copyOrder(), nil
}

func (m *MockShop) CancelOrder(context.Context, int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("cancel"); err != nil {
		return nil, err
	}
	m.order.Status = domain.OrderStatusCanceled
	return m.copyOrder(), nil
}

func (m *MockShop) CreateCheckoutSession(context.Context, int64, backend.CheckoutSessionRequest) (*domain.HostedSession, error) {
	return &domain.HostedSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, m.fail("create_checkout_session")
}

func (m *MockShop) ListOrders(context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_orders"); err != nil {
		return nil, err
	}
	return append([]domain.Order(nil), m.Orders...), nil
}

func (m *MockShop) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get_order"); err != nil {
		return nil, err
	}
	for _, o := range m.Orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, &backend.APIError{StatusCode: http.StatusNotFound, Detail: "Not found."}
}

func (m *MockShop) copyOrder() *domain.Order {
	o := *m.order
	return &o
}

// --- harness ---

type testServer struct {
	shop    *MockShop
	handler http.Handler
	cookie  *http.Cookie
	token   string
}

func setupServer(t *testing.T) *testServer {
	return setupServerWith(t, newMockShop())
}

func setupServerWith(t *testing.T, shop *MockShop) *testServer {
	logger, _ := test.NewNullLogger()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })

	registry := session.NewRegistry(session.NewFactory(session.Deps{
		Backend: shop,
		Store:   kv,
		Log:     logger,
	}), time.Hour, time.Hour, logger, nil)
	t.Cleanup(registry.Close)

	handler := NewRouter(RouterConfig{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		Session:            SessionOptions{CookieName: cookieName},
	}, RouterDeps{
		Sessions: registry,
		Account:  shop,
		Orders:   shop,
		Metrics:  metrics.New().Handler(),
		Log:      logger,
	})
	return &testServer{shop: shop, handler: handler}
}

// do sends a request as the current shopper, keeping the session cookie the
// first answer handed out.
func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			s.cookie = c
		}
	}
	return rec
}

type cartResponse struct {
	Mode  string `json:"mode"`
	Items []struct {
		Key      string `json:"key"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	Totals  domain.Totals `json:"totals"`
	Count   int           `json:"count"`
	Warning string        `json:"warning"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}
