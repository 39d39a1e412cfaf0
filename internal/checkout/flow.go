package checkout

import (
	"sync"
	"time"

	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/metrics"
	"github.com/boutique/storefront/internal/store"
	"github.com/sirupsen/logrus"
)

type Step int

const (
	StepForm   Step = 1
	StepReview Step = 2
)

func (s Step) String() string {
	switch s {
	case StepForm:
		return "form"
	case StepReview:
		return "review"
	}
	return "unknown"
}

type Selection struct {
	ShippingMethodID *int64 `json:"shipping_method_id"`
	AddressID        *int64 `json:"address_id"`
	PaymentMethodID  *int64 `json:"payment_method_id"`
}

type FormData struct {
	ShippingMethods []domain.ShippingMethod `json:"shipping_methods"`
	PaymentMethods  []domain.PaymentMethod  `json:"payment_methods"`
	Addresses       []domain.Address        `json:"addresses"`
	Preferences     *domain.Preferences     `json:"preferences"`
}

type State struct {
	Step           Step          `json:"step"`
	Selection      Selection     `json:"selection"`
	RequiresPickup bool          `json:"requires_pickup"`
	Order          *domain.Order `json:"order"`
	Form           FormData      `json:"form"`
}

type Deps struct {
	Backend  *BackendHandler
	Cart     CartResetter
	Store    store.Store
	Journal  Journal
	Verifier PaymentVerifier
	// MarkerTTL bounds how long a processed hosted session is remembered.
	MarkerTTL time.Duration
	Log       logrus.FieldLogger
	Metrics   *metrics.Metrics
}

// Flow is one session's checkout: FORM, then REVIEW once a draft order
// carries the selection. All methods are serialized by mu.
type Flow struct {
	mu        sync.Mutex
	sessionID string
	api       *BackendHandler
	cart      CartResetter
	kv        store.Store
	journal   Journal
	verifier  PaymentVerifier
	markerTTL time.Duration
	log       logrus.FieldLogger
	metrics   *metrics.Metrics

	step      Step
	selection Selection
	form      FormData
	order     *domain.Order
	attemptID string
}

func NewFlow(sessionID string, deps Deps) *Flow {
	ttl := deps.MarkerTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Flow{
		sessionID: sessionID,
		api:       deps.Backend,
		cart:      deps.Cart,
		kv:        deps.Store,
		journal:   deps.Journal,
		verifier:  deps.Verifier,
		markerTTL: ttl,
		log:       deps.Log.WithFields(logrus.Fields{"component": "checkout", "session": sessionID}),
		metrics:   deps.Metrics,
		step:      StepForm,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state()
}

// Select replaces the selection. Editing a reviewed checkout returns it to
// the form step.
func (f *Flow) Select(sel Selection) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selection = sel
	if f.step == StepReview {
		f.step = StepForm
	}
	return f.state()
}

func (f *Flow) RequiresPickup() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requiresPickup()
}

func (f *Flow) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validate()
}

func (f *Flow) state() State {
	return State{
		Step:           f.step,
		Selection:      f.selection,
		RequiresPickup: f.requiresPickup(),
		Order:          f.order,
		Form:           f.form,
	}
}

func (f *Flow) requiresPickup() bool {
	m, ok := f.shippingMethod()
	return ok && m.RequiresPickupPoint
}

// validate leaves a stale address selection alone: it is only ignored while
// the shipping method is a pickup.
func (f *Flow) validate() error {
	var missing []string
	if f.selection.ShippingMethodID == nil {
		missing = append(missing, "shipping_method")
	}
	if f.selection.AddressID == nil && !f.requiresPickup() {
		missing = append(missing, "address")
	}
	if f.selection.PaymentMethodID == nil {
		missing = append(missing, "payment_method")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func (f *Flow) shippingMethod() (domain.ShippingMethod, bool) {
	if f.selection.ShippingMethodID == nil {
		return domain.ShippingMethod{}, false
	}
	for _, m := range f.form.ShippingMethods {
		if m.ID == *f.selection.ShippingMethodID {
			return m, true
		}
	}
	return domain.ShippingMethod{}, false
}

// paymentMethod resolves the method on the cached order, falling back to the
// selection.
func (f *Flow) paymentMethod() (domain.PaymentMethod, bool) {
	id := f.selection.PaymentMethodID
	if f.order != nil && f.order.PaymentMethod != nil {
		id = f.order.PaymentMethod
	}
	if id == nil {
		return domain.PaymentMethod{}, false
	}
	return f.findPaymentMethod(*id)
}

func (f *Flow) findPaymentMethod(id int64) (domain.PaymentMethod, bool) {
	for _, m := range f.form.PaymentMethods {
		if m.ID == id {
			return m, true
		}
	}
	return domain.PaymentMethod{}, false
}

func (f *Flow) reset() {
	f.step = StepForm
	f.order = nil
	f.attemptID = ""
}
