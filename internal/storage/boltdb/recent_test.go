package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
)

func newTestStore(t *testing.T) (*RecentStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recent.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

var (
	base   = time.Date(2025, 6, 15, 12, 0, 0, 123, time.UTC)
	apple  = product.Product{PictureURL: "apple.png", Title: "Apple", Price: 1000}
	banana = product.Product{PictureURL: "banana.png", Title: "Banana", Price: 500}
)

func TestRecentStore_Empty(t *testing.T) {
	s, _ := newTestStore(t)

	all, err := s.SelectAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, all.Len())
	require.NoError(t, s.Ping(context.Background()))
}

func TestRecentStore_InsertUpdateFind(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.ErrorIs(t, s.Update(ctx, recent.RecentProduct{ViewedAt: base, Product: apple}), recent.ErrNotFound)

	require.NoError(t, s.Insert(ctx, recent.RecentProduct{ViewedAt: base, Product: apple}))
	require.NoError(t, s.Insert(ctx, recent.RecentProduct{ViewedAt: base.Add(time.Minute), Product: banana}))
	require.ErrorIs(t, s.Insert(ctx, recent.RecentProduct{ViewedAt: base, Product: apple}), recent.ErrDuplicateProduct)

	require.NoError(t, s.Update(ctx, recent.RecentProduct{ViewedAt: base.Add(time.Hour), Product: apple}))

	got, err := s.FindByProduct(ctx, apple)
	require.NoError(t, err)
	assert.True(t, got.ViewedAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, apple, got.Product)

	_, err = s.FindByProduct(ctx, product.Product{Title: "missing"})
	require.ErrorIs(t, err, recent.ErrNotFound)

	all, err := s.SelectAll(ctx)
	require.NoError(t, err)
	items := all.Recent(5)
	require.Len(t, items, 2)
	assert.Equal(t, apple, items[0].Product)
	assert.Equal(t, banana, items[1].Product)
}

func TestRecentStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)
	require.NoError(t, s.Insert(ctx, recent.RecentProduct{ViewedAt: base, Product: apple}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.FindByProduct(ctx, apple)
	require.NoError(t, err)
	assert.True(t, got.ViewedAt.Equal(base), "nanoseconds are preserved")
}
