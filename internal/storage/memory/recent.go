package memory

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
)

var _ recent.Store = (*RecentStore)(nil)

// RecentStore keeps one recently viewed entry per product.
type RecentStore struct {
	mu    sync.RWMutex
	items map[product.Product]recent.RecentProduct
}

func NewRecentStore() *RecentStore {
	return &RecentStore{items: make(map[product.Product]recent.RecentProduct)}
}

func (s *RecentStore) Insert(_ context.Context, rp recent.RecentProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rp.Product]; ok {
		return errors.Wrapf(recent.ErrDuplicateProduct, "%s", rp.Product)
	}
	s.items[rp.Product] = rp
	return nil
}

func (s *RecentStore) Update(_ context.Context, rp recent.RecentProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rp.Product]; !ok {
		return errors.Wrapf(recent.ErrNotFound, "%s", rp.Product)
	}
	s.items[rp.Product] = rp
	return nil
}

func (s *RecentStore) SelectAll(context.Context) (recent.RecentProducts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]recent.RecentProduct, 0, len(s.items))
	for _, rp := range s.items {
		items = append(items, rp)
	}
	return recent.New(items...)
}

func (s *RecentStore) FindByProduct(_ context.Context, p product.Product) (recent.RecentProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.items[p]
	if !ok {
		return recent.RecentProduct{}, errors.Wrapf(recent.ErrNotFound, "%s", p)
	}
	return rp, nil
}
