package memory

import (
	"context"
	"slices"

	"github.com/xenking/kart-session/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository serves a fixed catalog.
type ProductRepository struct {
	products []product.Product
}

func NewProductRepository(products ...product.Product) *ProductRepository {
	return &ProductRepository{products: slices.Clone(products)}
}

func (r *ProductRepository) List(_ context.Context, offset, limit int) ([]product.Product, error) {
	start := max(0, min(offset, len(r.products)))
	end := max(start, min(start+max(limit, 0), len(r.products)))
	return slices.Clone(r.products[start:end]), nil
}
