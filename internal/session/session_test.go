package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/storage/memory"
)

// --- Helpers ---

var baseTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testProduct(i int) product.Product {
	title := fmt.Sprintf("p%02d", i)
	return product.Product{PictureURL: title + ".png", Title: title, Price: int64(i+1) * 100}
}

// testLines returns n lines; even lines are checked, amounts cycle 1..3.
func testLines(n int) []cart.CartProduct {
	lines := make([]cart.CartProduct, n)
	for i := range lines {
		lines[i] = cart.CartProduct{
			AddedAt: baseTime.Add(time.Duration(i) * time.Second),
			Amount:  1 + i%3,
			Checked: i%2 == 0,
			Product: testProduct(i),
		}
	}
	return lines
}

// flakyStore wraps a memory store, counting fetches and failing selected
// operations once.
type flakyStore struct {
	*memory.CartStore

	mu       sync.Mutex
	fetches  int
	failures map[string]error
}

func newFlakyStore(lines ...cart.CartProduct) *flakyStore {
	return &flakyStore{
		CartStore: memory.NewCartStore(lines...),
		failures:  make(map[string]error),
	}
}

func (f *flakyStore) failOnce(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

func (f *flakyStore) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.failures[op]
	delete(f.failures, op)
	return err
}

func (f *flakyStore) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *flakyStore) FetchPage(ctx context.Context, page cart.Page, size int) (cart.Cart, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if err := f.take("fetch"); err != nil {
		return cart.Cart{}, err
	}
	return f.CartStore.FetchPage(ctx, page, size)
}

func (f *flakyStore) Update(ctx context.Context, cp cart.CartProduct) error {
	if err := f.take("update"); err != nil {
		return err
	}
	return f.CartStore.Update(ctx, cp)
}

func (f *flakyStore) Delete(ctx context.Context, cp cart.CartProduct) error {
	if err := f.take("delete"); err != nil {
		return err
	}
	return f.CartStore.Delete(ctx, cp)
}

// blockingStore never answers updates before the context expires.
type blockingStore struct {
	*memory.CartStore
}

func (b blockingStore) Update(ctx context.Context, _ cart.CartProduct) error {
	<-ctx.Done()
	return ctx.Err()
}

type recordingView struct {
	totals []Totals
	pages  []PageView
	items  []cart.CartProduct
	navs   []Navigation
}

func (v *recordingView) UpdateTotals(t Totals)          { v.totals = append(v.totals, t) }
func (v *recordingView) UpdatePage(p PageView)          { v.pages = append(v.pages, p) }
func (v *recordingView) UpdateItem(cp cart.CartProduct) { v.items = append(v.items, cp) }
func (v *recordingView) UpdateNavigation(n Navigation)  { v.navs = append(v.navs, n) }

func openSession(t *testing.T, store cart.Store, pageSize int) *Session {
	t.Helper()
	s, err := Open(context.Background(), store, Options{PageSize: pageSize})
	require.NoError(t, err)
	return s
}

func titles(items []cart.CartProduct) []string {
	out := make([]string, len(items))
	for i, cp := range items {
		out[i] = cp.Product.Title
	}
	return out
}

// storeTotals recomputes the checked totals from the store contents.
func storeTotals(t *testing.T, store cart.Store) Totals {
	t.Helper()
	ctx := context.Background()
	price, err := store.TotalPrice(ctx)
	require.NoError(t, err)
	amount, err := store.TotalAmount(ctx)
	require.NoError(t, err)
	return Totals{Price: price, Amount: amount}
}

func snapshot(t *testing.T, s *Session) State {
	t.Helper()
	st, err := s.Snapshot()
	require.NoError(t, err)
	return st
}

// --- Open & paging ---

func TestOpen_SeedsTotalsAndFirstPage(t *testing.T) {
	store := newFlakyStore(testLines(7)...)
	view := &recordingView{}

	s, err := Open(context.Background(), store, Options{PageSize: 5, View: view})
	require.NoError(t, err)

	st := snapshot(t, s)
	assert.Equal(t, []string{"p00", "p01", "p02", "p03", "p04"}, titles(st.Page.Items))
	assert.Equal(t, storeTotals(t, store), st.Totals)
	assert.Equal(t, 7, st.TotalCount)
	assert.Equal(t, Navigation{Visible: true, IsFirst: true, IsLast: false, Number: 1}, st.Navigation)
	assert.Equal(t, 1, store.fetchCount())

	require.Len(t, view.pages, 1)
	require.Len(t, view.totals, 1)
	assert.Equal(t, st.Totals, view.totals[0])
}

func TestOpen_SmallCartHidesNavigation(t *testing.T) {
	s := openSession(t, newFlakyStore(testLines(3)...), 5)

	st := snapshot(t, s)
	assert.False(t, st.Navigation.Visible)
	assert.True(t, st.Navigation.IsLast)
}

func TestOpen_StoreFailure(t *testing.T) {
	store := newFlakyStore(testLines(3)...)
	store.failOnce("fetch", errors.New("connection reset"))

	_, err := Open(context.Background(), store, Options{PageSize: 5})
	require.ErrorIs(t, err, cart.ErrStoreUnavailable)
}

func TestPaging_RevisitsWithoutRefetch(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(12)...)
	s := openSession(t, store, 5)

	require.NoError(t, s.NextPage(ctx))
	require.NoError(t, s.NextPage(ctx))
	st := snapshot(t, s)
	assert.Equal(t, []string{"p10", "p11"}, titles(st.Page.Items))
	assert.True(t, st.Navigation.IsLast)
	assert.Equal(t, 3, st.Navigation.Number)

	require.NoError(t, s.PreviousPage(ctx))
	require.NoError(t, s.PreviousPage(ctx))
	require.NoError(t, s.NextPage(ctx))
	assert.Equal(t, []string{"p05", "p06", "p07", "p08", "p09"}, titles(snapshot(t, s).Page.Items))

	assert.Equal(t, 3, store.fetchCount(), "each page is fetched exactly once")
}

func TestPaging_GuardedAtBounds(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(6)...)
	s := openSession(t, store, 5)

	require.NoError(t, s.PreviousPage(ctx))
	assert.Equal(t, 1, snapshot(t, s).Navigation.Number)

	require.NoError(t, s.NextPage(ctx))
	require.NoError(t, s.NextPage(ctx))
	st := snapshot(t, s)
	assert.Equal(t, 2, st.Navigation.Number)
	assert.Equal(t, []string{"p05"}, titles(st.Page.Items))
	assert.Equal(t, 2, store.fetchCount())
}

func TestPaging_FetchFailureKeepsPage(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(8)...)
	s := openSession(t, store, 5)
	before := snapshot(t, s)

	store.failOnce("fetch", errors.New("timeout"))
	require.ErrorIs(t, s.NextPage(ctx), cart.ErrStoreUnavailable)
	assert.Equal(t, before, snapshot(t, s))

	require.NoError(t, s.NextPage(ctx))
	assert.Equal(t, []string{"p05", "p06", "p07"}, titles(snapshot(t, s).Page.Items))
}

// --- Removal ---

func TestRemove_PagingStaysAligned(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(12)...)
	s := openSession(t, store, 5)

	require.NoError(t, s.Remove(ctx, testProduct(0)))
	st := snapshot(t, s)
	assert.Equal(t, []string{"p01", "p02", "p03", "p04", "p05"}, titles(st.Page.Items))
	assert.Equal(t, 11, st.TotalCount)

	var seen []string
	seen = append(seen, titles(st.Page.Items)...)
	for !snapshot(t, s).Navigation.IsLast {
		require.NoError(t, s.NextPage(ctx))
		seen = append(seen, titles(snapshot(t, s).Page.Items)...)
	}

	want := make([]string, 0, 11)
	for i := 1; i < 12; i++ {
		want = append(want, testProduct(i).Title)
	}
	assert.Equal(t, want, seen, "no line skipped or duplicated")
}

func TestRemove_RemovalInMiddlePage(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(12)...)
	s := openSession(t, store, 5)
	require.NoError(t, s.NextPage(ctx))

	require.NoError(t, s.Remove(ctx, testProduct(6)))
	assert.Equal(t, []string{"p05", "p07", "p08", "p09", "p10"}, titles(snapshot(t, s).Page.Items))

	require.NoError(t, s.NextPage(ctx))
	st := snapshot(t, s)
	assert.Equal(t, []string{"p11"}, titles(st.Page.Items))
	assert.True(t, st.Navigation.IsLast)
}

func TestRemove_LastLineOnPageStepsBack(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(6)...)
	s := openSession(t, store, 5)
	require.NoError(t, s.NextPage(ctx))

	require.NoError(t, s.Remove(ctx, testProduct(5)))

	st := snapshot(t, s)
	assert.Equal(t, 1, st.Navigation.Number)
	assert.False(t, st.Navigation.Visible)
	assert.Len(t, st.Page.Items, 5)
}

func TestRemove_CheckedLineSubtractsFullPrice(t *testing.T) {
	ctx := context.Background()
	lines := []cart.CartProduct{
		{AddedAt: baseTime, Amount: 3, Checked: true, Product: testProduct(0)},
		{AddedAt: baseTime, Amount: 1, Checked: true, Product: testProduct(1)},
	}
	s := openSession(t, newFlakyStore(lines...), 5)
	require.Equal(t, Totals{Price: 500, Amount: 4}, snapshot(t, s).Totals)

	require.NoError(t, s.Remove(ctx, testProduct(0)))
	assert.Equal(t, Totals{Price: 200, Amount: 1}, snapshot(t, s).Totals)
}

func TestRemove_FailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(4)...)
	s := openSession(t, store, 5)
	before := snapshot(t, s)

	store.failOnce("delete", errors.New("disk full"))
	err := s.Remove(ctx, testProduct(0))
	require.ErrorIs(t, err, cart.ErrStoreUnavailable)
	assert.Equal(t, before, snapshot(t, s))

	require.NoError(t, s.Remove(ctx, testProduct(0)))
	assert.Equal(t, 3, snapshot(t, s).TotalCount)
}

func TestRemove_UnknownProduct(t *testing.T) {
	s := openSession(t, newFlakyStore(testLines(2)...), 5)

	var nfErr *cart.NotFoundError
	require.ErrorAs(t, s.Remove(context.Background(), testProduct(42)), &nfErr)
	assert.Equal(t, testProduct(42), nfErr.Product)
}

// --- Amounts & checks ---

func TestIncreaseAndDecrease(t *testing.T) {
	ctx := context.Background()
	line := cart.CartProduct{AddedAt: baseTime, Amount: 1, Checked: true, Product: testProduct(0)}
	store := newFlakyStore(line)
	s := openSession(t, store, 5)

	require.NoError(t, s.DecreaseWithFloor(ctx, line.Product))
	assert.Equal(t, Totals{Price: 100, Amount: 1}, snapshot(t, s).Totals, "floor decrease is a no-op at 1")

	require.NoError(t, s.Increase(ctx, line.Product))
	require.NoError(t, s.Increase(ctx, line.Product))
	assert.Equal(t, Totals{Price: 300, Amount: 3}, snapshot(t, s).Totals)

	require.NoError(t, s.DecreaseWithFloor(ctx, line.Product))
	assert.Equal(t, Totals{Price: 200, Amount: 2}, snapshot(t, s).Totals)

	require.NoError(t, s.DecreaseOrRemove(ctx, line.Product))
	require.NoError(t, s.DecreaseOrRemove(ctx, line.Product))
	st := snapshot(t, s)
	assert.Empty(t, st.Page.Items)
	assert.Equal(t, Totals{}, st.Totals)
	assert.Empty(t, store.Lines())
}

func TestIncrease_UncheckedLineKeepsTotals(t *testing.T) {
	ctx := context.Background()
	line := cart.CartProduct{AddedAt: baseTime, Amount: 2, Checked: false, Product: testProduct(0)}
	s := openSession(t, newFlakyStore(line), 5)

	require.NoError(t, s.Increase(ctx, line.Product))
	st := snapshot(t, s)
	assert.Equal(t, Totals{}, st.Totals)
	assert.Equal(t, 3, st.Page.Items[0].Amount)
}

func TestIncrease_FailureThenRetry(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(3)...)
	s := openSession(t, store, 5)
	before := snapshot(t, s)

	store.failOnce("update", errors.New("connection refused"))
	err := s.Increase(ctx, testProduct(0))
	require.ErrorIs(t, err, cart.ErrStoreUnavailable)

	var storeErr *cart.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "update", storeErr.Op)
	assert.Equal(t, before, snapshot(t, s))

	require.NoError(t, s.Increase(ctx, testProduct(0)))
	assert.Equal(t, storeTotals(t, store), snapshot(t, s).Totals)
}

func TestStoreTimeout(t *testing.T) {
	store := blockingStore{CartStore: memory.NewCartStore(testLines(2)...)}
	s, err := Open(context.Background(), store, Options{PageSize: 5, StoreTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	before := snapshot(t, s)

	err = s.Increase(context.Background(), testProduct(0))
	require.ErrorIs(t, err, cart.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, before, snapshot(t, s))
}

func TestToggleChecked(t *testing.T) {
	ctx := context.Background()
	line := cart.CartProduct{AddedAt: baseTime, Amount: 3, Checked: true, Product: testProduct(1)}
	store := newFlakyStore(line)
	s := openSession(t, store, 5)
	require.Equal(t, Totals{Price: 600, Amount: 3}, snapshot(t, s).Totals)

	require.NoError(t, s.ToggleChecked(ctx, line.Product))
	st := snapshot(t, s)
	assert.Equal(t, Totals{}, st.Totals)
	assert.False(t, st.Page.AllChecked)

	stored, err := store.FindByProduct(ctx, line.Product)
	require.NoError(t, err)
	assert.False(t, stored.Checked, "checked flag is persisted")

	require.NoError(t, s.ToggleChecked(ctx, line.Product))
	assert.Equal(t, Totals{Price: 600, Amount: 3}, snapshot(t, s).Totals)
}

func TestSetAllCheckedInPage(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(7)...)
	s := openSession(t, store, 5)

	require.NoError(t, s.SetAllCheckedInPage(ctx, true))
	st := snapshot(t, s)
	assert.True(t, st.Page.AllChecked)
	assert.Equal(t, storeTotals(t, store), st.Totals)

	require.NoError(t, s.SetAllCheckedInPage(ctx, false))
	st = snapshot(t, s)
	assert.False(t, st.Page.AllChecked)
	assert.Equal(t, storeTotals(t, store), st.Totals)

	// Lines on the unseen second page keep their flags.
	p6, err := store.FindByProduct(ctx, testProduct(6))
	require.NoError(t, err)
	assert.True(t, p6.Checked)
}

func TestTotalsInvariantAcrossOperations(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(testLines(11)...)
	s := openSession(t, store, 4)

	ops := []struct {
		name string
		do   func() error
	}{
		{"increase p00", func() error { return s.Increase(ctx, testProduct(0)) }},
		{"toggle p01", func() error { return s.ToggleChecked(ctx, testProduct(1)) }},
		{"remove p02", func() error { return s.Remove(ctx, testProduct(2)) }},
		{"next", func() error { return s.NextPage(ctx) }},
		{"floor p05", func() error { return s.DecreaseWithFloor(ctx, testProduct(5)) }},
		{"check all", func() error { return s.SetAllCheckedInPage(ctx, true) }},
		{"remove p06", func() error { return s.Remove(ctx, testProduct(6)) }},
		{"next", func() error { return s.NextPage(ctx) }},
		{"decrease p09", func() error { return s.DecreaseOrRemove(ctx, testProduct(9)) }},
		{"uncheck all", func() error { return s.SetAllCheckedInPage(ctx, false) }},
		{"previous", func() error { return s.PreviousPage(ctx) }},
		{"toggle p07", func() error { return s.ToggleChecked(ctx, testProduct(7)) }},
		{"remove p00", func() error { return s.Remove(ctx, testProduct(0)) }},
	}

	for _, op := range ops {
		require.NoError(t, op.do(), op.name)
		st := snapshot(t, s)
		assert.Equal(t, storeTotals(t, store), st.Totals, "after %s", op.name)
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, count, st.TotalCount, "after %s", op.name)
	}
}

// --- Close ---

func TestClose_ReturnsDifference(t *testing.T) {
	ctx := context.Background()
	lines := []cart.CartProduct{
		{AddedAt: baseTime, Amount: 1, Checked: true, Product: testProduct(0)},
		{AddedAt: baseTime, Amount: 2, Checked: true, Product: testProduct(1)},
	}
	s := openSession(t, newFlakyStore(lines...), 5)

	require.NoError(t, s.Increase(ctx, testProduct(0)))
	require.NoError(t, s.Remove(ctx, testProduct(1)))
	require.NoError(t, s.ToggleChecked(ctx, testProduct(0)))

	d, ok, err := s.Close()
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []product.ShoppingProduct{
		{Product: testProduct(0), Amount: 2},
		{Product: testProduct(1), Amount: 0},
	}, d.Changed)
	assert.Equal(t, -1, d.NetAmountDelta)

	_, _, err = s.Close()
	require.ErrorIs(t, err, ErrSessionClosed)
	require.ErrorIs(t, s.Increase(ctx, testProduct(0)), ErrSessionClosed)
	require.ErrorIs(t, s.NextPage(ctx), ErrSessionClosed)
	_, err = s.Snapshot()
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestClose_NoChanges(t *testing.T) {
	s := openSession(t, newFlakyStore(testLines(3)...), 5)
	require.NoError(t, s.ToggleChecked(context.Background(), testProduct(0)))

	_, ok, err := s.Close()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestView_ReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	view := &recordingView{}
	s, err := Open(ctx, newFlakyStore(testLines(3)...), Options{PageSize: 5, View: view})
	require.NoError(t, err)

	require.NoError(t, s.Increase(ctx, testProduct(0)))
	require.NotEmpty(t, view.items)
	assert.Equal(t, 2, view.items[len(view.items)-1].Amount)
	assert.Equal(t, Totals{Price: 1100, Amount: 5}, view.totals[len(view.totals)-1])

	require.NoError(t, s.Remove(ctx, testProduct(1)))
	last := view.pages[len(view.pages)-1]
	assert.Equal(t, []string{"p00", "p02"}, titles(last.Items))
	assert.False(t, view.navs[len(view.navs)-1].Visible)
}
