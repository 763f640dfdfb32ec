package product

import (
	"cmp"
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrInvalidProduct is returned when a product fails basic validation.
var ErrInvalidProduct = errors.New("invalid product")

// Product represents a catalog item. Products carry no surrogate identifier:
// two products with identical fields are the same product, so Product is
// comparable and can be used directly as a map key.
type Product struct {
	PictureURL string
	Title      string
	Price      int64
}

// Validate reports whether the product can be stored in a cart.
func (p Product) Validate() error {
	if p.Price < 0 {
		return errors.Wrap(ErrInvalidProduct, "negative price")
	}
	if p.Title == "" {
		return errors.Wrap(ErrInvalidProduct, "empty title")
	}
	return nil
}

func (p Product) String() string {
	return fmt.Sprintf("%q (%d)", p.Title, p.Price)
}

// Compare orders products by title, then picture URL, then price.
func Compare(a, b Product) int {
	return cmp.Or(
		cmp.Compare(a.Title, b.Title),
		cmp.Compare(a.PictureURL, b.PictureURL),
		cmp.Compare(a.Price, b.Price),
	)
}

// ShoppingProduct is the product/amount projection used for diffing cart
// contents between screens.
type ShoppingProduct struct {
	Product Product
	Amount  int
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, offset, limit int) ([]Product, error)
}
