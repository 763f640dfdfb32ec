package reconcile

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/kart-session/internal/domain/product"
)

// Board is the catalog screen's displayed state: the amount shown next to
// each product and the cart counter badge.
type Board struct {
	mu      sync.Mutex
	amounts map[product.Product]int
	counter int
	applied map[uuid.UUID]struct{}
}

// NewBoard seeds a board from the given amounts and counter.
func NewBoard(amounts []product.ShoppingProduct, counter int) *Board {
	b := &Board{
		amounts: make(map[product.Product]int, len(amounts)),
		counter: counter,
		applied: make(map[uuid.UUID]struct{}),
	}
	for _, sp := range amounts {
		if sp.Amount > 0 {
			b.amounts[sp.Product] = sp.Amount
		}
	}
	return b
}

// Apply replaces the displayed amount of every changed product (0 clears
// it) and adjusts the counter by the net delta. A payload whose ID was
// already applied is ignored and Apply reports false.
func (b *Board) Apply(d Difference) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.applied[d.ID]; ok {
		return false
	}
	b.applied[d.ID] = struct{}{}

	for _, sp := range d.Changed {
		if sp.Amount <= 0 {
			delete(b.amounts, sp.Product)
			continue
		}
		b.amounts[sp.Product] = sp.Amount
	}
	b.counter += d.NetAmountDelta
	return true
}

// Amount returns the displayed amount of p.
func (b *Board) Amount(p product.Product) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.amounts[p]
}

// Counter returns the displayed cart counter.
func (b *Board) Counter() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counter
}

// Snapshot returns the displayed amounts ordered by title and the counter.
func (b *Board) Snapshot() ([]product.ShoppingProduct, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]product.ShoppingProduct, 0, len(b.amounts))
	for p, n := range b.amounts {
		out = append(out, product.ShoppingProduct{Product: p, Amount: n})
	}
	slices.SortFunc(out, func(a, b product.ShoppingProduct) int {
		return product.Compare(a.Product, b.Product)
	})
	return out, b.counter
}

// Publish applies d to the board. Redelivered payloads are dropped silently.
func (b *Board) Publish(_ context.Context, d Difference) error {
	b.Apply(d)
	return nil
}
