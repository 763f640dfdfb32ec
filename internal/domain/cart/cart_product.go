package cart

import (
	"time"

	"github.com/xenking/kart-session/internal/domain/product"
)

// CartProduct is a single cart line. Values are immutable: every mutator
// returns a modified copy.
type CartProduct struct {
	// AddedAt orders lines in the cart; it is the paging key.
	AddedAt time.Time
	Amount  int
	Checked bool
	Product product.Product
}

// NewCartProduct returns a fresh line for a product added at the given time:
// one unit, checked.
func NewCartProduct(p product.Product, addedAt time.Time) CartProduct {
	return CartProduct{
		AddedAt: addedAt,
		Amount:  1,
		Checked: true,
		Product: p,
	}
}

// IncreaseAmount returns a copy with one more unit.
func (c CartProduct) IncreaseAmount() CartProduct {
	c.Amount++
	return c
}

// DecreaseAmount returns a copy with one unit less. The amount never drops
// below zero.
func (c CartProduct) DecreaseAmount() CartProduct {
	if c.Amount > 0 {
		c.Amount--
	}
	return c
}

// ChangeChecked returns a copy with the given checked flag.
func (c CartProduct) ChangeChecked(checked bool) CartProduct {
	c.Checked = checked
	return c
}

// TotalPrice is the line price: unit price times amount.
func (c CartProduct) TotalPrice() int64 {
	return c.Product.Price * int64(c.Amount)
}

// ShoppingProduct projects the line to its product and amount.
func (c CartProduct) ShoppingProduct() product.ShoppingProduct {
	return product.ShoppingProduct{Product: c.Product, Amount: c.Amount}
}
