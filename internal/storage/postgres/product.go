package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-session/internal/domain/product"
)

const (
	listProductsSQL = `SELECT picture_url, title, price
		FROM products ORDER BY id LIMIT $1 OFFSET $2`

	upsertProductSQL = `INSERT INTO products (picture_url, title, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (picture_url, title, price) DO NOTHING`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns a catalog page ordered by insertion.
func (r *ProductRepository) List(ctx context.Context, offset, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, max(limit, 0), max(offset, 0))
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert adds p to the catalog. Existing products are left untouched.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertProductSQL, p.PictureURL, p.Title, p.Price); err != nil {
		return errors.Wrapf(err, "upsert product %s", p)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.PictureURL, &p.Title, &p.Price)
	return p, err
}
