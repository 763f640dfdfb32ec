package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
)

const (
	insertRecentSQL = `INSERT INTO recent_products (picture_url, title, price, viewed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (picture_url, title, price) DO NOTHING`

	updateRecentSQL = `UPDATE recent_products SET viewed_at = $4
		WHERE picture_url = $1 AND title = $2 AND price = $3`

	selectRecentSQL = `SELECT picture_url, title, price, viewed_at
		FROM recent_products ORDER BY viewed_at DESC`

	findRecentSQL = `SELECT picture_url, title, price, viewed_at
		FROM recent_products WHERE picture_url = $1 AND title = $2 AND price = $3`
)

var _ recent.Store = (*RecentRepository)(nil)

// RecentRepository implements recent.Store backed by PostgreSQL.
type RecentRepository struct {
	pool *pgxpool.Pool
}

// NewRecentRepository returns a RecentRepository that uses the given pool.
func NewRecentRepository(pool *pgxpool.Pool) *RecentRepository {
	return &RecentRepository{pool: pool}
}

func (r *RecentRepository) Insert(ctx context.Context, rp recent.RecentProduct) error {
	p := rp.Product
	tag, err := r.pool.Exec(ctx, insertRecentSQL, p.PictureURL, p.Title, p.Price, rp.ViewedAt)
	if err != nil {
		return errors.Wrapf(err, "insert recent product %s", p)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(recent.ErrDuplicateProduct, "%s", p)
	}
	return nil
}

func (r *RecentRepository) Update(ctx context.Context, rp recent.RecentProduct) error {
	p := rp.Product
	tag, err := r.pool.Exec(ctx, updateRecentSQL, p.PictureURL, p.Title, p.Price, rp.ViewedAt)
	if err != nil {
		return errors.Wrapf(err, "update recent product %s", p)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(recent.ErrNotFound, "%s", p)
	}
	return nil
}

func (r *RecentRepository) SelectAll(ctx context.Context) (recent.RecentProducts, error) {
	rows, err := r.pool.Query(ctx, selectRecentSQL)
	if err != nil {
		return recent.RecentProducts{}, errors.Wrap(err, "select recent products")
	}
	items, err := pgx.CollectRows(rows, scanRecentProduct)
	if err != nil {
		return recent.RecentProducts{}, errors.Wrap(err, "select recent products")
	}
	return recent.New(items...)
}

func (r *RecentRepository) FindByProduct(ctx context.Context, p product.Product) (recent.RecentProduct, error) {
	rows, err := r.pool.Query(ctx, findRecentSQL, p.PictureURL, p.Title, p.Price)
	if err != nil {
		return recent.RecentProduct{}, errors.Wrapf(err, "find recent product %s", p)
	}
	rp, err := pgx.CollectExactlyOneRow(rows, scanRecentProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return recent.RecentProduct{}, errors.Wrapf(recent.ErrNotFound, "%s", p)
		}
		return recent.RecentProduct{}, errors.Wrapf(err, "find recent product %s", p)
	}
	return rp, nil
}

func scanRecentProduct(row pgx.CollectableRow) (recent.RecentProduct, error) {
	var rp recent.RecentProduct
	err := row.Scan(&rp.Product.PictureURL, &rp.Product.Title, &rp.Product.Price, &rp.ViewedAt)
	return rp, err
}
