package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics groups the collectors the service reports. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	Registry *prometheus.Registry

	cartOps        *prometheus.CounterVec
	checkoutSteps  *prometheus.CounterVec
	hostedReturns  *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	sessions       prometheus.Gauge
}

// New creates a registry with the go and process collectors plus the service
// metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: registry,
		cartOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Cart operations by kind, cart mode and outcome.",
		}, []string{"op", "mode", "result"}),
		checkoutSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_steps_total",
			Help:      "Checkout saga steps by name and outcome.",
		}, []string{"step", "result"}),
		hostedReturns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hosted_payment_returns_total",
			Help:      "Hosted payment returns by outcome.",
		}, []string{"result"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of calls to the shop backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "code"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
	}
	registry.MustRegister(m.cartOps, m.checkoutSteps, m.hostedReturns, m.backendLatency, m.sessions)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (m *Metrics) CartOp(op, mode string, err error) {
	if m == nil {
		return
	}
	m.cartOps.WithLabelValues(op, mode, result(err)).Inc()
}

func (m *Metrics) CheckoutStep(step string, outcome string) {
	if m == nil {
		return
	}
	m.checkoutSteps.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) HostedReturn(outcome string) {
	if m == nil {
		return
	}
	m.hostedReturns.WithLabelValues(outcome).Inc()
}

// ObserveBackend records a backend call. code is 0 when no response arrived.
func (m *Metrics) ObserveBackend(method, endpoint string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(method, endpoint, strconv.Itoa(code)).Observe(took.Seconds())
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
