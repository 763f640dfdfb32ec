// Package session implements the cart-editing session: a paged cache over a
// cart store that keeps checked-line totals up to date incrementally and
// reports the net change when it closes.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/reconcile"
)

// DefaultPageSize is used when Options.PageSize is not positive.
const DefaultPageSize = 5

// Options configure a session.
type Options struct {
	// PageSize is the number of lines per page.
	PageSize int
	// StoreTimeout bounds every store call. Zero disables the bound.
	StoreTimeout time.Duration
	View         View
	Logger       *zap.Logger
}

func (o *Options) setDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.View == nil {
		o.View = NopView{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Session is a single cart-editing session. All methods are safe for
// concurrent use; operations are serialized.
type Session struct {
	mu sync.Mutex

	store        cart.Store
	view         View
	lg           *zap.Logger
	pageSize     int
	storeTimeout time.Duration

	// working is the edited cart, baseline the lines as first loaded.
	working  cart.Cart
	baseline cart.Cart
	removals []product.ShoppingProduct
	// exhausted is set once the store returned a short page.
	exhausted bool

	page        cart.Page
	totalCount  int
	totalPrice  int64
	totalAmount int

	closed bool
}

// Open seeds the aggregates from the store and loads the first page.
func Open(ctx context.Context, store cart.Store, opts Options) (*Session, error) {
	opts.setDefaults()
	s := &Session{
		store:        store,
		view:         opts.View,
		lg:           opts.Logger,
		pageSize:     opts.PageSize,
		storeTimeout: opts.StoreTimeout,
	}

	var (
		count  int
		price  int64
		amount int
	)
	if err := s.call(ctx, "count", func(ctx context.Context) (err error) {
		count, err = store.Count(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if err := s.call(ctx, "total price", func(ctx context.Context) (err error) {
		price, err = store.TotalPrice(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if err := s.call(ctx, "total amount", func(ctx context.Context) (err error) {
		amount, err = store.TotalAmount(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	s.totalCount = count
	s.totalPrice = price
	s.totalAmount = amount

	window, err := s.window(ctx, s.page)
	if err != nil {
		return nil, errors.Wrap(err, "load first page")
	}
	s.publishPage(window)
	s.publishTotals()
	return s, nil
}

// Snapshot returns the current page, totals and navigation state.
func (s *Session) Snapshot() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrSessionClosed
	}
	window := s.localWindow(s.page)
	return State{
		Page:       s.pageView(window),
		Totals:     s.totals(),
		Navigation: s.navigation(window),
		TotalCount: s.totalCount,
	}, nil
}

// NextPage moves to the following page. On the last page it is a no-op.
func (s *Session) NextPage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.isLast(s.localWindow(s.page)) {
		return nil
	}
	next := s.page.MoveToNextPage()
	window, err := s.window(ctx, next)
	if err != nil {
		return err
	}
	s.page = next
	s.publishPage(window)
	return nil
}

// PreviousPage moves to the preceding page. On the first page it is a no-op.
func (s *Session) PreviousPage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.page.IsFirstPage() {
		return nil
	}
	prev := s.page.MoveToPreviousPage()
	window, err := s.window(ctx, prev)
	if err != nil {
		return err
	}
	s.page = prev
	s.publishPage(window)
	return nil
}

// Remove deletes the line holding p.
func (s *Session) Remove(ctx context.Context, p product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := s.find(p)
	if err != nil {
		return err
	}
	return s.remove(ctx, cp)
}

// Increase adds one to the amount of p.
func (s *Session) Increase(ctx context.Context, p product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := s.find(p)
	if err != nil {
		return err
	}
	return s.replace(ctx, cp, cp.IncreaseAmount())
}

// DecreaseWithFloor subtracts one from the amount of p. A line at amount 1
// is left alone.
func (s *Session) DecreaseWithFloor(ctx context.Context, p product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := s.find(p)
	if err != nil {
		return err
	}
	if cp.Amount <= 1 {
		return nil
	}
	return s.replace(ctx, cp, cp.DecreaseAmount())
}

// DecreaseOrRemove subtracts one from the amount of p, removing the line
// when it reaches zero.
func (s *Session) DecreaseOrRemove(ctx context.Context, p product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := s.find(p)
	if err != nil {
		return err
	}
	if cp.Amount <= 1 {
		return s.remove(ctx, cp)
	}
	return s.replace(ctx, cp, cp.DecreaseAmount())
}

// ToggleChecked flips the checked flag of p.
func (s *Session) ToggleChecked(ctx context.Context, p product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := s.find(p)
	if err != nil {
		return err
	}
	if err := s.replace(ctx, cp, cp.ChangeChecked(!cp.Checked)); err != nil {
		return err
	}
	s.publishPage(s.localWindow(s.page))
	return nil
}

// SetAllCheckedInPage sets the checked flag of every line on the current
// page. Lines already in the requested state are not touched. On a store
// failure the lines toggled so far stay toggled.
func (s *Session) SetAllCheckedInPage(ctx context.Context, checked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	window := s.localWindow(s.page)
	for _, cp := range window.Products() {
		if cp.Checked == checked {
			continue
		}
		if err := s.replace(ctx, cp, cp.ChangeChecked(checked)); err != nil {
			s.publishPage(s.localWindow(s.page))
			return err
		}
	}
	s.publishPage(s.localWindow(s.page))
	return nil
}

// Close ends the session and returns the net change it made. The bool is
// false when nothing changed.
func (s *Session) Close() (reconcile.Difference, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return reconcile.Difference{}, false, ErrSessionClosed
	}
	s.closed = true
	d, ok := reconcile.Compute(s.baseline, s.working, s.removals)
	return d, ok, nil
}

func (s *Session) find(p product.Product) (cart.CartProduct, error) {
	if s.closed {
		return cart.CartProduct{}, ErrSessionClosed
	}
	cp, ok := s.working.Find(p)
	if !ok {
		return cart.CartProduct{}, &cart.NotFoundError{Product: p}
	}
	return cp, nil
}

// replace persists next and swaps it in for prev, applying the totals delta
// of the change.
func (s *Session) replace(ctx context.Context, prev, next cart.CartProduct) error {
	if err := s.call(ctx, "update", func(ctx context.Context) error {
		return s.store.Update(ctx, next)
	}); err != nil {
		return err
	}
	working, err := s.working.ReplaceCartProduct(prev, next)
	if err != nil {
		return errors.Wrap(err, "replace line")
	}
	s.working = working
	s.applyDelta(prev, next)
	s.view.UpdateItem(next)
	s.publishTotals()
	return nil
}

func (s *Session) remove(ctx context.Context, cp cart.CartProduct) error {
	if err := s.call(ctx, "delete", func(ctx context.Context) error {
		return s.store.Delete(ctx, cp)
	}); err != nil {
		return err
	}
	s.working = s.working.RemoveCartProduct(cp)
	s.totalCount--
	s.applyDelta(cp, cart.CartProduct{})
	s.recordRemoval(cp.Product)

	window := s.refresh(ctx, s.page)
	if window.Len() == 0 && !s.page.IsFirstPage() {
		s.page = s.page.MoveToPreviousPage()
		window = s.refresh(ctx, s.page)
	}
	s.publishPage(window)
	s.publishTotals()
	return nil
}

// applyDelta moves the checked totals from prev's contribution to next's.
// A zero next means the line left the cart.
func (s *Session) applyDelta(prev, next cart.CartProduct) {
	if prev.Checked {
		s.totalPrice -= prev.TotalPrice()
		s.totalAmount -= prev.Amount
	}
	if next.Checked {
		s.totalPrice += next.TotalPrice()
		s.totalAmount += next.Amount
	}
}

func (s *Session) recordRemoval(p product.Product) {
	for _, sp := range s.removals {
		if sp.Product == p {
			return
		}
	}
	s.removals = append(s.removals, product.ShoppingProduct{Product: p})
}

// window returns the lines on page p, fetching from the store whatever the
// cache lacks. Fetched lines are applied only after every fetch succeeded.
func (s *Session) window(ctx context.Context, p cart.Page) (cart.Cart, error) {
	start := p.Start(s.pageSize)
	end := start + s.pageSize
	if end <= s.working.Len() || s.exhausted {
		return s.working.SubCart(start, end), nil
	}

	var (
		fetched   cart.Cart
		exhausted bool
		// offset is the store row the next fetch starts at. Rows before it
		// are either cached or deleted through this session.
		offset = s.working.Len()
	)
	for s.working.Len()+fetched.Len() < end && !exhausted {
		page := cart.Page{Value: offset / s.pageSize}
		skip := offset % s.pageSize

		var got cart.Cart
		if err := s.call(ctx, "fetch page", func(ctx context.Context) (err error) {
			got, err = s.store.FetchPage(ctx, page, s.pageSize)
			return err
		}); err != nil {
			return cart.Cart{}, err
		}
		if got.Len() < s.pageSize {
			exhausted = true
		}
		if got.Len() > skip {
			offset += got.Len() - skip
		}
		for _, cp := range got.SubCart(skip, got.Len()).Products() {
			if s.known(cp.Product) {
				continue
			}
			next, err := fetched.Add(cp)
			if err != nil {
				return cart.Cart{}, errors.Wrap(err, "collect fetched lines")
			}
			fetched = next
		}
	}

	working, err := s.working.Append(fetched)
	if err != nil {
		return cart.Cart{}, errors.Wrap(err, "append to working")
	}
	baseline, err := s.baseline.Append(fetched)
	if err != nil {
		return cart.Cart{}, errors.Wrap(err, "append to baseline")
	}
	s.working = working
	s.baseline = baseline
	s.exhausted = exhausted
	if fetched.Len() > 0 {
		s.lg.Debug("Fetched lines",
			zap.Int("page", p.Number()),
			zap.Int("lines", fetched.Len()),
			zap.Bool("exhausted", exhausted),
		)
	}
	return working.SubCart(start, end), nil
}

// known reports whether the session already holds p, either cached or
// loaded before being removed.
func (s *Session) known(p product.Product) bool {
	if _, ok := s.working.Find(p); ok {
		return true
	}
	_, ok := s.baseline.Find(p)
	return ok
}

// refresh is window for use after a committed mutation: a failed fetch
// degrades to the locally cached lines.
func (s *Session) refresh(ctx context.Context, p cart.Page) cart.Cart {
	window, err := s.window(ctx, p)
	if err != nil {
		s.lg.Warn("Refresh page from store", zap.Int("page", p.Number()), zap.Error(err))
		return s.localWindow(p)
	}
	return window
}

func (s *Session) localWindow(p cart.Page) cart.Cart {
	start := p.Start(s.pageSize)
	return s.working.SubCart(start, start+s.pageSize)
}

func (s *Session) isLast(window cart.Cart) bool {
	return s.page.Start(s.pageSize)+window.Len() >= s.totalCount
}

func (s *Session) totals() Totals {
	return Totals{Price: s.totalPrice, Amount: s.totalAmount}
}

func (s *Session) pageView(window cart.Cart) PageView {
	return PageView{
		Page:       s.page,
		Items:      window.Products(),
		AllChecked: window.IsAllChecked(),
	}
}

func (s *Session) navigation(window cart.Cart) Navigation {
	return Navigation{
		Visible: s.totalCount > s.pageSize || !s.page.IsFirstPage(),
		IsFirst: s.page.IsFirstPage(),
		IsLast:  s.isLast(window),
		Number:  s.page.Number(),
	}
}

func (s *Session) publishPage(window cart.Cart) {
	s.view.UpdatePage(s.pageView(window))
	s.view.UpdateNavigation(s.navigation(window))
}

func (s *Session) publishTotals() {
	s.view.UpdateTotals(s.totals())
}

// call runs fn under the store timeout and classifies its error.
func (s *Session) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		return cart.WrapStoreError(op, err)
	}
	return nil
}
