package session

import (
	"testing"
	"time"

	"github.com/boutique/storefront/internal/cart"
	"github.com/boutique/storefront/internal/checkout"
	"github.com/boutique/storefront/internal/metrics"
	"github.com/boutique/storefront/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend satisfies Backend for wiring tests that never call it.
type stubBackend struct {
	Backend
}

func setupRegistry(t *testing.T) (*Registry, *int) {
	logger, _ := test.NewNullLogger()
	created := 0
	factory := func(id string) *Session {
		created++
		return &Session{ID: id}
	}
	r := NewRegistry(factory, time.Minute, time.Hour, logger, metrics.New())
	t.Cleanup(r.Close)
	return r, &created
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	r, created := setupRegistry(t)

	a := r.Get("sess-1")
	b := r.Get("sess-1")
	r.Get("sess-2")

	assert.Same(t, a, b)
	assert.Equal(t, 2, *created)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, float64(2), activeSessions(t, r.metrics))
}

func activeSessions(t *testing.T, m *metrics.Metrics) float64 {
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "storefront_active_sessions" {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("active sessions gauge not registered")
	return 0
}

func TestRegistry_EvictsIdleSessions(t *testing.T) {
	r, created := setupRegistry(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Get("old")
	now = now.Add(45 * time.Second)
	r.Get("fresh")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, r.evictIdle())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, float64(1), activeSessions(t, r.metrics))

	r.Get("old")
	assert.Equal(t, 3, *created, "an evicted session is rebuilt on its next request")
}

func TestRegistry_TouchKeepsSessionAlive(t *testing.T) {
	r, _ := setupRegistry(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Get("sess-1")
	now = now.Add(50 * time.Second)
	r.Get("sess-1")
	now = now.Add(50 * time.Second)

	assert.Zero(t, r.evictIdle())
}

func TestNewFactory_WiresCartAndCheckout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })

	factory := NewFactory(Deps{
		Backend: stubBackend{},
		Store:   kv,
		Log:     logger,
	})
	s := factory("sess-1")

	require.NotNil(t, s.Cart)
	require.NotNil(t, s.Checkout)
	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, cart.ModeAnonymous, s.Cart.Mode())
	assert.Equal(t, checkout.StepForm, s.Checkout.State().Step)
}
