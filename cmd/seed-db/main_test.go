package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
)

const sample = `{"pictureUrl":"a.png","title":"A","price":100}

{"title":"B","price":250,"category":"ignored"}
`

func TestReadProducts(t *testing.T) {
	got, err := readProducts(context.Background(), strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, []product.Product{
		{PictureURL: "a.png", Title: "A", Price: 100},
		{Title: "B", Price: 250},
	}, got)
}

func TestReadProducts_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"malformed", "{\"title\":\"A\",\"price\":1}\n{oops}\n", "line 2"},
		{"negative price", `{"title":"A","price":-1}`, "line 1"},
		{"missing title", `{"price":1}`, "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readProducts(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadProducts_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "products.jsonl.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := loadProducts(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

type recordingRepo struct {
	mu   sync.Mutex
	seen []product.Product
	fail string
}

func (r *recordingRepo) Upsert(_ context.Context, p product.Product) error {
	if p.Title == r.fail {
		return errors.New("constraint violation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, p)
	return nil
}

func TestUpsertProducts(t *testing.T) {
	products := []product.Product{{Title: "A"}, {Title: "B"}, {Title: "C"}, {Title: "D"}}

	repo := &recordingRepo{}
	require.NoError(t, upsertProducts(context.Background(), repo, products, 2))
	assert.ElementsMatch(t, products, repo.seen)

	err := upsertProducts(context.Background(), &recordingRepo{fail: "C"}, products, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"C"`)
}

type fakeCart struct {
	lines []cart.CartProduct
}

func (f *fakeCart) Insert(_ context.Context, cp cart.CartProduct) error {
	for _, l := range f.lines {
		if l.Product == cp.Product {
			return cart.ErrDuplicateProduct
		}
	}
	f.lines = append(f.lines, cp)
	return nil
}

func TestSeedCart_SkipsExisting(t *testing.T) {
	a := product.Product{Title: "A", Price: 1}
	b := product.Product{Title: "B", Price: 2}
	carts := &fakeCart{lines: []cart.CartProduct{{Product: a, Amount: 5}}}

	require.NoError(t, seedCart(context.Background(), carts, []product.Product{a, b}))
	require.Len(t, carts.lines, 2)
	assert.Equal(t, 5, carts.lines[0].Amount)
	assert.Equal(t, b, carts.lines[1].Product)
	assert.Equal(t, 2, carts.lines[1].Amount)
	assert.True(t, carts.lines[1].Checked)
}
