// Package catalog implements the product-browsing screen: the product list
// with cart amounts, the quantity stepper and recently viewed tracking.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
	"github.com/xenking/kart-session/internal/reconcile"
)

// Service encapsulates the catalog screen's operations.
type Service struct {
	products  product.Repository
	carts     cart.Store
	recents   recent.Store
	publisher reconcile.Publisher
	now       func() time.Time
}

// Option configures a Service.
type Option func(s *Service)

// WithPublisher sets where stepper changes are published as single-line
// differences.
func WithPublisher(p reconcile.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService creates a catalog Service.
func NewService(products product.Repository, carts cart.Store, recents recent.Store, opts ...Option) *Service {
	s := &Service{
		products:  products,
		carts:     carts,
		recents:   recents,
		publisher: reconcile.NopPublisher{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ViewProduct records that p was viewed and returns the product viewed
// before it, or nil when there is none or it was p itself.
func (s *Service) ViewProduct(ctx context.Context, p product.Product) (*product.Product, error) {
	all, err := s.recents.SelectAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "select recent products")
	}
	latest, hasLatest := all.Latest()

	entry, _ := all.View(p, s.now()).Latest()
	if _, seen := all.FindByProduct(p); seen {
		if err := s.recents.Update(ctx, entry); err != nil {
			return nil, errors.Wrap(err, "update recent product")
		}
	} else if err := s.recents.Insert(ctx, entry); err != nil {
		if !errors.Is(err, recent.ErrDuplicateProduct) {
			return nil, errors.Wrap(err, "insert recent product")
		}
		// Viewed concurrently since SelectAll.
		if err := s.recents.Update(ctx, entry); err != nil {
			return nil, errors.Wrap(err, "update recent product")
		}
	}

	if !hasLatest || latest.Product == p {
		return nil, nil
	}
	prev := latest.Product
	return &prev, nil
}

// RecentProducts returns at most n recently viewed products, newest first.
func (s *Service) RecentProducts(ctx context.Context, n int) ([]recent.RecentProduct, error) {
	all, err := s.recents.SelectAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "select recent products")
	}
	return all.Recent(n), nil
}

// ListProducts returns a catalog page joined with the cart amount of each
// product; products not in the cart have amount 0.
func (s *Service) ListProducts(ctx context.Context, offset, limit int) ([]product.ShoppingProduct, error) {
	products, err := s.products.List(ctx, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]product.ShoppingProduct, len(products))
	for i, p := range products {
		out[i] = product.ShoppingProduct{Product: p}
		cp, err := s.carts.FindByProduct(ctx, p)
		var nf *cart.NotFoundError
		switch {
		case err == nil:
			out[i].Amount = cp.Amount
		case errors.As(err, &nf):
		default:
			return nil, cart.WrapStoreError("find cart product", err)
		}
	}
	return out, nil
}

// Increase puts p into the cart with amount 1, or adds one to its amount.
func (s *Service) Increase(ctx context.Context, p product.Product) (product.ShoppingProduct, error) {
	if err := p.Validate(); err != nil {
		return product.ShoppingProduct{}, err
	}
	cp, err := s.carts.FindByProduct(ctx, p)
	var nf *cart.NotFoundError
	switch {
	case err == nil:
		next := cp.IncreaseAmount()
		if err := s.carts.Update(ctx, next); err != nil {
			return product.ShoppingProduct{}, cart.WrapStoreError("update cart product", err)
		}
		return s.stepped(ctx, next.ShoppingProduct(), 1), nil
	case errors.As(err, &nf):
		fresh := cart.NewCartProduct(p, s.now())
		if err := s.carts.Insert(ctx, fresh); err != nil {
			return product.ShoppingProduct{}, cart.WrapStoreError("insert cart product", err)
		}
		return s.stepped(ctx, fresh.ShoppingProduct(), 1), nil
	default:
		return product.ShoppingProduct{}, cart.WrapStoreError("find cart product", err)
	}
}

// DecreaseOrRemove subtracts one from the amount of p, deleting the line
// when it reaches zero. The result has amount 0 after a deletion.
func (s *Service) DecreaseOrRemove(ctx context.Context, p product.Product) (product.ShoppingProduct, error) {
	cp, err := s.carts.FindByProduct(ctx, p)
	if err != nil {
		return product.ShoppingProduct{}, cart.WrapStoreError("find cart product", err)
	}
	next := cp.DecreaseAmount()
	if next.Amount == 0 {
		if err := s.carts.Delete(ctx, cp); err != nil {
			return product.ShoppingProduct{}, cart.WrapStoreError("delete cart product", err)
		}
	} else if err := s.carts.Update(ctx, next); err != nil {
		return product.ShoppingProduct{}, cart.WrapStoreError("update cart product", err)
	}
	return s.stepped(ctx, next.ShoppingProduct(), -1), nil
}

// stepped publishes a committed stepper change. A failed publish is logged
// and the store change stands.
func (s *Service) stepped(ctx context.Context, sp product.ShoppingProduct, delta int) product.ShoppingProduct {
	d := reconcile.Difference{
		ID:             uuid.New(),
		Changed:        []product.ShoppingProduct{sp},
		NetAmountDelta: delta,
	}
	if err := s.publisher.Publish(ctx, d); err != nil {
		zctx.From(ctx).Error("Publish stepper change",
			zap.Stringer("difference", d.ID),
			zap.Stringer("product", sp.Product),
			zap.Error(err),
		)
	}
	return sp
}

// CartAmount returns the cart counter: the total amount over every line,
// checked or not.
func (s *Service) CartAmount(ctx context.Context) (int, error) {
	n, err := s.carts.SumAmount(ctx)
	if err != nil {
		return 0, cart.WrapStoreError("cart amount", err)
	}
	return n, nil
}
