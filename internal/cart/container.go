package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boutique/storefront/internal/backend"
	"github.com/boutique/storefront/internal/domain"
	"github.com/boutique/storefront/internal/metrics"
	"github.com/boutique/storefront/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Backend is the part of the shop API the cart needs.
type Backend interface {
	GetCart(ctx context.Context) (*domain.ServerCart, error)
	AddCartItem(ctx context.Context, req backend.AddCartItemRequest) (*domain.ServerCartItem, error)
	UpdateCartItem(ctx context.Context, itemID int64, quantity int) error
	DeleteCartItem(ctx context.Context, itemID int64) error
	MergeCart(ctx context.Context, items []domain.StartItem) (*backend.MergeResult, error)
}

type AddOptions struct {
	Qty           int    `json:"qty"`
	SelectedSize  string `json:"selected_size,omitempty"`
	SelectedColor string `json:"selected_color,omitempty"`
}

// Container holds one session's cart. Mutations are serialized by mu, so a
// session never has two cart calls to the backend in flight.
type Container struct {
	mu        sync.Mutex
	sessionID string
	api       Backend
	kv        store.Store
	state     State
	loaded    bool
	merged    bool
	gen       uint64
	sfg       singleflight.Group
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
}

func NewContainer(sessionID string, api Backend, kv store.Store, log logrus.FieldLogger, m *metrics.Metrics) *Container {
	return &Container{
		sessionID: sessionID,
		api:       api,
		kv:        kv,
		state:     Anonymous{Lines: domain.Lines{}},
		log:       log.WithFields(logrus.Fields{"component": "cart", "session": sessionID}),
		metrics:   m,
	}
}

func storageKey(sessionID string) string {
	return fmt.Sprintf("cart_v1:%s", sessionID)
}

func (c *Container) Snapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)
	return snapshotOf(c.state)
}

func (c *Container) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Mode()
}

// Lines returns a copy of the current lines.
func (c *Container) Lines(ctx context.Context) domain.Lines {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded(ctx)
	return c.state.lines().Clone()
}

func (c *Container) AddItem(ctx context.Context, product domain.Product, opts AddOptions) (snap Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.metrics.CartOp("add", string(c.state.Mode()), err) }()

	if opts.Qty <= 0 {
		return snapshotOf(c.state), domain.ErrInvalidQuantity
	}
	c.ensureLoaded(ctx)

	switch st := c.state.(type) {
	case Anonymous:
		lines := st.Lines.Clone()
		if err := lines.Add(domain.NewLine(product, opts.Qty, opts.SelectedSize, opts.SelectedColor)); err != nil {
			return snapshotOf(c.state), err
		}
		c.setAnonymous(ctx, lines)
	case Synced:
		_, err := c.api.AddCartItem(ctx, backend.AddCartItemRequest{
			ProductID: product.ID,
			SizeLabel: opts.SelectedSize,
			Quantity:  opts.Qty,
		})
		if err != nil {
			return snapshotOf(c.state), fmt.Errorf("failed to add cart item: %w", err)
		}
		if err := c.refetch(ctx); err != nil {
			return snapshotOf(c.state), err
		}
	}
	return snapshotOf(c.state), nil
}

// UpdateQty sets a line's quantity. Zero or less removes the line.
func (c *Container) UpdateQty(ctx context.Context, key string, qty int) (snap Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.metrics.CartOp("update_qty", string(c.state.Mode()), err) }()
	c.ensureLoaded(ctx)

	switch st := c.state.(type) {
	case Anonymous:
		lines := st.Lines.Clone()
		if err := lines.SetQty(key, qty); err != nil {
			return snapshotOf(c.state), err
		}
		c.setAnonymous(ctx, lines)
	case Synced:
		line, ok := findServerLine(st.Lines, key)
		if !ok {
			return snapshotOf(c.state), domain.ErrLineNotFound
		}
		if qty <= 0 {
			err = c.api.DeleteCartItem(ctx, line.ServerItemID)
		} else {
			err = c.api.UpdateCartItem(ctx, line.ServerItemID, qty)
		}
		if err != nil {
			return snapshotOf(c.state), fmt.Errorf("failed to update cart item: %w", err)
		}
		if err := c.refetch(ctx); err != nil {
			return snapshotOf(c.state), err
		}
	}
	return snapshotOf(c.state), nil
}

func (c *Container) RemoveItem(ctx context.Context, key string) (snap Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.metrics.CartOp("remove", string(c.state.Mode()), err) }()
	c.ensureLoaded(ctx)

	switch st := c.state.(type) {
	case Anonymous:
		lines := st.Lines.Clone()
		if err := lines.Remove(key); err != nil {
			return snapshotOf(c.state), err
		}
		c.setAnonymous(ctx, lines)
	case Synced:
		line, ok := findServerLine(st.Lines, key)
		if !ok {
			return snapshotOf(c.state), domain.ErrLineNotFound
		}
		if err := c.api.DeleteCartItem(ctx, line.ServerItemID); err != nil {
			return snapshotOf(c.state), fmt.Errorf("failed to remove cart item: %w", err)
		}
		if err := c.refetch(ctx); err != nil {
			return snapshotOf(c.state), err
		}
	}
	return snapshotOf(c.state), nil
}

// Clear empties the cart. The backend has no bulk delete, so an authenticated
// clear deletes line by line and stops at the first failure.
func (c *Container) Clear(ctx context.Context) (snap Snapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.metrics.CartOp("clear", string(c.state.Mode()), err) }()
	c.ensureLoaded(ctx)

	st, ok := c.state.(Synced)
	if !ok {
		c.setAnonymous(ctx, domain.Lines{})
		return snapshotOf(c.state), nil
	}

	lines := st.Lines
	for i, line := range lines {
		if errDelete := c.api.DeleteCartItem(ctx, line.ServerItemID); errDelete != nil {
			c.log.WithError(errDelete).WithField("item_id", line.ServerItemID).Warn("cart clear interrupted")
			if errFetch := c.refetch(ctx); errFetch != nil {
				c.log.WithError(errFetch).Warn("refetch after partial clear failed")
			}
			return snapshotOf(c.state), &PartialClearError{
				Deleted:   i,
				Remaining: len(lines) - i,
				Err:       errDelete,
			}
		}
	}

	if err := c.refetch(ctx); err != nil {
		return snapshotOf(c.state), err
	}
	return snapshotOf(c.state), nil
}

// Sync moves the container into the state matching whether the caller is
// authenticated.
func (c *Container) Sync(ctx context.Context, authenticated bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.(type) {
	case Anonymous:
		if authenticated {
			return c.authenticate(ctx)
		}
	case Synced:
		if !authenticated {
			c.logout(ctx)
		}
	}
	return nil
}

func (c *Container) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.(Synced); ok {
		return nil
	}
	return c.authenticate(ctx)
}

func (c *Container) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logout(ctx)
}

// authenticate sends the anonymous lines to the merge endpoint at most once
// per container, then switches to the server cart. Local lines are dropped
// whether or not the merge succeeded.
func (c *Container) authenticate(ctx context.Context) (err error) {
	defer func() { c.metrics.CartOp("merge", string(ModeSynced), err) }()
	c.ensureLoaded(ctx)
	lines := c.state.lines()

	var mergeErr error
	if len(lines) > 0 && !c.merged {
		c.merged = true
		res, errMerge := c.api.MergeCart(ctx, lines.StartItems())
		if errMerge != nil {
			c.log.WithError(errMerge).WithField("lines", len(lines)).Warn("cart merge failed, loading server cart")
			mergeErr = &MergeError{Lines: len(lines), Err: errMerge}
		} else {
			c.log.WithField("merged", res.Count).Info("anonymous cart merged")
		}
	}

	if errDelete := c.kv.Delete(ctx, storageKey(c.sessionID)); errDelete != nil {
		c.log.WithError(errDelete).Warn("failed to drop stored cart")
	}

	if errFetch := c.refetch(ctx); errFetch != nil {
		c.setState(Synced{Lines: domain.Lines{}})
		return errors.Join(mergeErr, errFetch)
	}
	return mergeErr
}

func (c *Container) logout(ctx context.Context) {
	c.setState(Anonymous{Lines: c.load(ctx)})
	c.loaded = true
}

// Refresh re-reads the server cart. Concurrent refreshes share one request and
// a result older than a mutation that finished meanwhile is discarded.
func (c *Container) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if _, ok := c.state.(Synced); !ok {
		c.ensureLoaded(ctx)
		snap := snapshotOf(c.state)
		c.mu.Unlock()
		return snap, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.sfg.Do(c.sessionID, func() (interface{}, error) {
		return c.api.GetCart(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		return snapshotOf(c.state), fmt.Errorf("failed to fetch cart: %w", err)
	}
	if _, ok := c.state.(Synced); ok && c.gen == gen {
		c.setState(syncedFrom(v.(*domain.ServerCart)))
	}
	return snapshotOf(c.state), nil
}

// AfterCheckout resets the cart once an order was placed. The backend already
// emptied the server cart, so a synced cart only needs refetching.
func (c *Container) AfterCheckout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.state.(Synced); ok {
		return c.refetch(ctx)
	}
	c.setAnonymous(ctx, domain.Lines{})
	return nil
}

// refetch loads the server cart after a mutation. Any in-flight Refresh is
// forgotten so the mutation never reuses a pre-mutation answer.
func (c *Container) refetch(ctx context.Context) error {
	c.sfg.Forget(c.sessionID)
	v, err, _ := c.sfg.Do(c.sessionID, func() (interface{}, error) {
		return c.api.GetCart(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch cart: %w", err)
	}
	c.setState(syncedFrom(v.(*domain.ServerCart)))
	return nil
}

func (c *Container) setState(s State) {
	c.state = s
	c.gen++
}

func (c *Container) setAnonymous(ctx context.Context, lines domain.Lines) {
	c.setState(Anonymous{Lines: lines})
	c.persist(ctx, lines)
}

func (c *Container) ensureLoaded(ctx context.Context) {
	if c.loaded {
		return
	}
	c.loaded = true
	if _, ok := c.state.(Anonymous); ok {
		c.setState(Anonymous{Lines: c.load(ctx)})
	}
}

// load reads the stored anonymous cart. A missing or unreadable entry is an
// empty cart.
func (c *Container) load(ctx context.Context) domain.Lines {
	data, err := c.kv.Get(ctx, storageKey(c.sessionID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.WithError(err).Warn("failed to read stored cart")
		}
		return domain.Lines{}
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.WithError(err).Warn("discarding unreadable stored cart")
		return domain.Lines{}
	}
	lines := domain.Lines{}
	for _, l := range p.Items {
		if l.Quantity > 0 && l.Key != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func (c *Container) persist(ctx context.Context, lines domain.Lines) {
	data, err := json.Marshal(persisted{Items: lines})
	if err != nil {
		c.log.WithError(err).Error("failed to encode cart")
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.kv.Set(writeCtx, storageKey(c.sessionID), data, 0); err != nil {
		c.log.WithError(err).Warn("failed to store cart")
	}
}

// findServerLine matches by server item key first, then by product and size
// for keys built as product::size::color.
func findServerLine(lines domain.Lines, key string) (domain.CartLine, bool) {
	if i := lines.Find(key); i >= 0 {
		return lines[i], true
	}
	parts := strings.SplitN(key, "::", 3)
	if len(parts) != 3 {
		return domain.CartLine{}, false
	}
	productID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.CartLine{}, false
	}
	for _, l := range lines {
		if l.ProductID == productID && l.SelectedSize == parts[1] {
			return l, true
		}
	}
	return domain.CartLine{}, false
}
