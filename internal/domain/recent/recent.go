// Package recent models the recently viewed products list: newest first,
// one entry per product, bounded only at query time.
package recent

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-session/internal/domain/product"
)

var (
	// ErrNotFound is returned when a product has no recently viewed entry.
	ErrNotFound = errors.New("recent product not found")
	// ErrDuplicateProduct is returned when two entries would share a product.
	ErrDuplicateProduct = errors.New("product already recently viewed")
)

// RecentProduct records when a product was last viewed.
type RecentProduct struct {
	ViewedAt time.Time
	Product  product.Product
}

// RecentProducts is an immutable newest-first list of viewed products.
type RecentProducts struct {
	items []RecentProduct
}

// New builds the list from entries in any order, sorting them newest first.
// Entries viewed at the same instant are ordered by product. It returns
// ErrDuplicateProduct when two entries share a product.
func New(items ...RecentProduct) (RecentProducts, error) {
	seen := make(map[product.Product]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.Product]; ok {
			return RecentProducts{}, errors.Wrapf(ErrDuplicateProduct, "%s", it.Product)
		}
		seen[it.Product] = struct{}{}
	}
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b RecentProduct) int {
		return cmp.Or(
			b.ViewedAt.Compare(a.ViewedAt),
			product.Compare(a.Product, b.Product),
		)
	})
	return RecentProducts{items: sorted}, nil
}

// Len returns the number of entries.
func (r RecentProducts) Len() int { return len(r.items) }

// Items returns a copy of all entries, newest first.
func (r RecentProducts) Items() []RecentProduct {
	return slices.Clone(r.items)
}

// MakeRecentProduct builds a fresh entry for a product viewed at now.
func (r RecentProducts) MakeRecentProduct(p product.Product, now time.Time) RecentProduct {
	return RecentProduct{ViewedAt: now, Product: p}
}

// View records a view of p at now. An existing entry for p is moved to the
// front with the refreshed time; otherwise a new entry is inserted at the
// front.
func (r RecentProducts) View(p product.Product, now time.Time) RecentProducts {
	out := make([]RecentProduct, 0, len(r.items)+1)
	out = append(out, r.MakeRecentProduct(p, now))
	for _, it := range r.items {
		if it.Product != p {
			out = append(out, it)
		}
	}
	return RecentProducts{items: out}
}

// Recent returns at most n newest entries.
func (r RecentProducts) Recent(n int) []RecentProduct {
	n = max(0, min(n, len(r.items)))
	return slices.Clone(r.items[:n])
}

// Latest returns the most recently viewed entry.
func (r RecentProducts) Latest() (RecentProduct, bool) {
	if len(r.items) == 0 {
		return RecentProduct{}, false
	}
	return r.items[0], true
}

// FindByProduct returns the entry for p.
func (r RecentProducts) FindByProduct(p product.Product) (RecentProduct, bool) {
	i := slices.IndexFunc(r.items, func(it RecentProduct) bool {
		return it.Product == p
	})
	if i < 0 {
		return RecentProduct{}, false
	}
	return r.items[i], true
}

// Store persists recently viewed entries, one per product.
type Store interface {
	// Insert returns ErrDuplicateProduct when p already has an entry.
	Insert(ctx context.Context, rp RecentProduct) error
	// Update refreshes the entry of rp.Product, returning ErrNotFound when
	// it has none.
	Update(ctx context.Context, rp RecentProduct) error
	SelectAll(ctx context.Context) (RecentProducts, error)
	FindByProduct(ctx context.Context, p product.Product) (RecentProduct, error)
}
