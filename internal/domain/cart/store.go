package cart

import (
	"context"

	"github.com/xenking/kart-session/internal/domain/product"
)

// Store is the backing store a cart session pages over. Implementations
// provide atomic single-row mutations; lines are identified by product.
type Store interface {
	// FetchPage returns up to size lines starting at page*size in stable
	// insertion order. A short page means the data is exhausted.
	FetchPage(ctx context.Context, page Page, size int) (Cart, error)
	// Count returns the number of lines in the cart.
	Count(ctx context.Context) (int, error)
	// TotalPrice returns the sum of price*amount over checked lines.
	TotalPrice(ctx context.Context) (int64, error)
	// TotalAmount returns the sum of amounts over checked lines.
	TotalAmount(ctx context.Context) (int, error)
	// SumAmount returns the sum of amounts over every line.
	SumAmount(ctx context.Context) (int, error)

	Insert(ctx context.Context, cp CartProduct) error
	Delete(ctx context.Context, cp CartProduct) error
	Update(ctx context.Context, cp CartProduct) error
	// FindByProduct returns a *NotFoundError when the product is not in the
	// cart.
	FindByProduct(ctx context.Context, p product.Product) (CartProduct, error)
}
