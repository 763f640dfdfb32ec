package cart

import (
	"slices"

	"github.com/xenking/kart-session/internal/domain/product"
)

// Cart is an ordered, immutable sequence of cart lines holding at most one
// line per product. Insertion order is the paging order. The zero value is
// an empty cart.
type Cart struct {
	products []CartProduct
}

// New builds a cart from the given lines, returning ErrDuplicateProduct if
// two lines share a product.
func New(products ...CartProduct) (Cart, error) {
	return Cart{}.Append(Cart{products: products})
}

// Len returns the number of lines.
func (c Cart) Len() int { return len(c.products) }

// Products returns a copy of the cart lines.
func (c Cart) Products() []CartProduct {
	return slices.Clone(c.products)
}

// ShoppingProducts projects every line to its product and amount.
func (c Cart) ShoppingProducts() []product.ShoppingProduct {
	out := make([]product.ShoppingProduct, len(c.products))
	for i, cp := range c.products {
		out[i] = cp.ShoppingProduct()
	}
	return out
}

// TotalAmount sums the amount of every line.
func (c Cart) TotalAmount() int {
	total := 0
	for _, cp := range c.products {
		total += cp.Amount
	}
	return total
}

// Find returns the line holding the given product.
func (c Cart) Find(p product.Product) (CartProduct, bool) {
	i := c.index(p)
	if i < 0 {
		return CartProduct{}, false
	}
	return c.products[i], true
}

// Add appends a line. It returns ErrDuplicateProduct when the product is
// already in the cart.
func (c Cart) Add(cp CartProduct) (Cart, error) {
	if c.index(cp.Product) >= 0 {
		return c, ErrDuplicateProduct
	}
	return Cart{products: append(slices.Clone(c.products), cp)}, nil
}

// Append returns a cart with the lines of other appended in order.
func (c Cart) Append(other Cart) (Cart, error) {
	seen := make(map[product.Product]struct{}, len(c.products)+len(other.products))
	for _, cp := range c.products {
		seen[cp.Product] = struct{}{}
	}
	out := make([]CartProduct, 0, len(c.products)+len(other.products))
	out = append(out, c.products...)
	for _, cp := range other.products {
		if _, ok := seen[cp.Product]; ok {
			return c, ErrDuplicateProduct
		}
		seen[cp.Product] = struct{}{}
		out = append(out, cp)
	}
	return Cart{products: out}, nil
}

// RemoveCartProduct removes the line holding target's product. Removing a
// product that is not in the cart leaves the cart unchanged.
func (c Cart) RemoveCartProduct(target CartProduct) Cart {
	i := c.index(target.Product)
	if i < 0 {
		return c
	}
	return Cart{products: slices.Delete(slices.Clone(c.products), i, i+1)}
}

// ReplaceCartProduct swaps the line holding prev's product for next, keeping
// its position. When prev's product is absent the cart is returned unchanged
// together with a *NotFoundError.
func (c Cart) ReplaceCartProduct(prev, next CartProduct) (Cart, error) {
	i := c.index(prev.Product)
	if i < 0 {
		return c, &NotFoundError{Product: prev.Product}
	}
	if next.Product != prev.Product && c.index(next.Product) >= 0 {
		return c, ErrDuplicateProduct
	}
	out := slices.Clone(c.products)
	out[i] = next
	return Cart{products: out}, nil
}

// SubCart returns the lines in [start, end), clamped to the cart bounds.
func (c Cart) SubCart(start, end int) Cart {
	start = max(0, min(start, len(c.products)))
	end = max(start, min(end, len(c.products)))
	return Cart{products: slices.Clone(c.products[start:end])}
}

// IsAllChecked reports whether every line is checked. An empty cart is not
// considered all checked.
func (c Cart) IsAllChecked() bool {
	if len(c.products) == 0 {
		return false
	}
	for _, cp := range c.products {
		if !cp.Checked {
			return false
		}
	}
	return true
}

func (c Cart) index(p product.Product) int {
	return slices.IndexFunc(c.products, func(cp CartProduct) bool {
		return cp.Product == p
	})
}
