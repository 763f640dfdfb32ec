package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
)

const (
	fetchCartPageSQL = `SELECT picture_url, title, price, amount, checked, added_at
		FROM cart_items ORDER BY id LIMIT $1 OFFSET $2`

	countCartItemsSQL = `SELECT count(*) FROM cart_items`

	cartTotalPriceSQL = `SELECT COALESCE(SUM(price * amount) FILTER (WHERE checked), 0)::BIGINT
		FROM cart_items`

	cartTotalAmountSQL = `SELECT COALESCE(SUM(amount) FILTER (WHERE checked), 0)::BIGINT
		FROM cart_items`

	cartSumAmountSQL = `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM cart_items`

	insertCartItemSQL = `INSERT INTO cart_items (picture_url, title, price, amount, checked, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (picture_url, title, price) DO NOTHING`

	deleteCartItemSQL = `DELETE FROM cart_items
		WHERE picture_url = $1 AND title = $2 AND price = $3`

	updateCartItemSQL = `UPDATE cart_items SET amount = $4, checked = $5
		WHERE picture_url = $1 AND title = $2 AND price = $3`

	findCartItemSQL = `SELECT picture_url, title, price, amount, checked, added_at
		FROM cart_items WHERE picture_url = $1 AND title = $2 AND price = $3`
)

var _ cart.Store = (*CartRepository)(nil)

// CartRepository implements cart.Store backed by PostgreSQL. Lines are
// paged in insertion order.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) FetchPage(ctx context.Context, page cart.Page, size int) (cart.Cart, error) {
	rows, err := r.pool.Query(ctx, fetchCartPageSQL, size, page.Start(size))
	if err != nil {
		return cart.Cart{}, errors.Wrapf(err, "fetch cart page %d", page.Number())
	}
	lines, err := pgx.CollectRows(rows, scanCartProduct)
	if err != nil {
		return cart.Cart{}, errors.Wrapf(err, "fetch cart page %d", page.Number())
	}
	return cart.New(lines...)
}

func (r *CartRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countCartItemsSQL).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count cart items")
	}
	return n, nil
}

func (r *CartRepository) TotalPrice(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, cartTotalPriceSQL).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "cart total price")
	}
	return total, nil
}

func (r *CartRepository) TotalAmount(ctx context.Context) (int, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, cartTotalAmountSQL).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "cart total amount")
	}
	return int(total), nil
}

func (r *CartRepository) SumAmount(ctx context.Context) (int, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, cartSumAmountSQL).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "cart sum amount")
	}
	return int(total), nil
}

func (r *CartRepository) Insert(ctx context.Context, cp cart.CartProduct) error {
	p := cp.Product
	tag, err := r.pool.Exec(ctx, insertCartItemSQL,
		p.PictureURL, p.Title, p.Price, cp.Amount, cp.Checked, cp.AddedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert cart item %s", p)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrDuplicateProduct
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, cp cart.CartProduct) error {
	p := cp.Product
	tag, err := r.pool.Exec(ctx, deleteCartItemSQL, p.PictureURL, p.Title, p.Price)
	if err != nil {
		return errors.Wrapf(err, "delete cart item %s", p)
	}
	if tag.RowsAffected() == 0 {
		return &cart.NotFoundError{Product: p}
	}
	return nil
}

func (r *CartRepository) Update(ctx context.Context, cp cart.CartProduct) error {
	p := cp.Product
	tag, err := r.pool.Exec(ctx, updateCartItemSQL,
		p.PictureURL, p.Title, p.Price, cp.Amount, cp.Checked,
	)
	if err != nil {
		return errors.Wrapf(err, "update cart item %s", p)
	}
	if tag.RowsAffected() == 0 {
		return &cart.NotFoundError{Product: p}
	}
	return nil
}

func (r *CartRepository) FindByProduct(ctx context.Context, p product.Product) (cart.CartProduct, error) {
	rows, err := r.pool.Query(ctx, findCartItemSQL, p.PictureURL, p.Title, p.Price)
	if err != nil {
		return cart.CartProduct{}, errors.Wrapf(err, "find cart item %s", p)
	}
	cp, err := pgx.CollectExactlyOneRow(rows, scanCartProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.CartProduct{}, &cart.NotFoundError{Product: p}
		}
		return cart.CartProduct{}, errors.Wrapf(err, "find cart item %s", p)
	}
	return cp, nil
}

func scanCartProduct(row pgx.CollectableRow) (cart.CartProduct, error) {
	var cp cart.CartProduct
	err := row.Scan(
		&cp.Product.PictureURL, &cp.Product.Title, &cp.Product.Price,
		&cp.Amount, &cp.Checked, &cp.AddedAt,
	)
	return cp, err
}
