// Package memory provides in-process implementations of the store
// contracts. They back tests and single-process deployments.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps cart lines in insertion order.
type CartStore struct {
	mu    sync.RWMutex
	lines []cart.CartProduct
}

// NewCartStore returns a store holding the given lines.
func NewCartStore(lines ...cart.CartProduct) *CartStore {
	return &CartStore{lines: slices.Clone(lines)}
}

func (s *CartStore) FetchPage(_ context.Context, page cart.Page, size int) (cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := min(page.Start(size), len(s.lines))
	end := min(start+size, len(s.lines))
	return cart.New(s.lines[start:end]...)
}

func (s *CartStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines), nil
}

func (s *CartStore) TotalPrice(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, cp := range s.lines {
		if cp.Checked {
			total += cp.TotalPrice()
		}
	}
	return total, nil
}

func (s *CartStore) TotalAmount(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, cp := range s.lines {
		if cp.Checked {
			total += cp.Amount
		}
	}
	return total, nil
}

func (s *CartStore) SumAmount(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, cp := range s.lines {
		total += cp.Amount
	}
	return total, nil
}

func (s *CartStore) Insert(_ context.Context, cp cart.CartProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(cp.Product) >= 0 {
		return cart.ErrDuplicateProduct
	}
	s.lines = append(s.lines, cp)
	return nil
}

func (s *CartStore) Delete(_ context.Context, cp cart.CartProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(cp.Product)
	if i < 0 {
		return &cart.NotFoundError{Product: cp.Product}
	}
	s.lines = slices.Delete(s.lines, i, i+1)
	return nil
}

func (s *CartStore) Update(_ context.Context, cp cart.CartProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(cp.Product)
	if i < 0 {
		return &cart.NotFoundError{Product: cp.Product}
	}
	s.lines[i] = cp
	return nil
}

func (s *CartStore) FindByProduct(_ context.Context, p product.Product) (cart.CartProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(p)
	if i < 0 {
		return cart.CartProduct{}, &cart.NotFoundError{Product: p}
	}
	return s.lines[i], nil
}

// Lines returns a copy of every stored line.
func (s *CartStore) Lines() []cart.CartProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lines)
}

func (s *CartStore) index(p product.Product) int {
	return slices.IndexFunc(s.lines, func(cp cart.CartProduct) bool {
		return cp.Product == p
	})
}
