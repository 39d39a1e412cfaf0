package session

import (
	"sync"
	"time"

	"github.com/boutique/storefront/internal/cart"
	"github.com/boutique/storefront/internal/checkout"
	"github.com/boutique/storefront/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Session is everything the storefront holds for one shopper.
type Session struct {
	ID       string
	Cart     *cart.Container
	Checkout *checkout.Flow

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Factory builds the state of a session seen for the first time.
type Factory func(id string) *Session

// Registry keeps live sessions in memory and evicts the idle ones. An evicted
// anonymous cart survives in the store; the checkout flow starts over.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
	idle     time.Duration
	interval time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
	metrics  *metrics.Metrics

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewRegistry(factory Factory, idle, interval time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *Registry {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	r := &Registry{
		sessions:    make(map[string]*Session),
		factory:     factory,
		idle:        idle,
		interval:    interval,
		now:         time.Now,
		log:         log.WithField("component", "sessions"),
		metrics:     m,
		stopCleanup: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = r.factory(id)
		r.sessions[id] = s
		r.metrics.SetSessions(len(r.sessions))
	}
	s.touch(r.now())
	return s
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *Registry) evictIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := 0
	for id, s := range r.sessions {
		if s.idleSince(now) > r.idle {
			delete(r.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.log.WithFields(logrus.Fields{"evicted": evicted, "live": len(r.sessions)}).Debug("evicted idle sessions")
		r.metrics.SetSessions(len(r.sessions))
	}
	return evicted
}

// Close stops the background cleanup and waits for it to finish
func (r *Registry) Close() {
	close(r.stopCleanup)
	r.wg.Wait()
}
