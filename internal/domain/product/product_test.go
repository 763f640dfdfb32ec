package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_StructuralEquality(t *testing.T) {
	a := Product{PictureURL: "https://cdn/a.png", Title: "Apple", Price: 1000}
	b := Product{PictureURL: "https://cdn/a.png", Title: "Apple", Price: 1000}

	assert.Equal(t, a, b)
	assert.True(t, a == b)

	seen := map[Product]int{a: 1}
	assert.Equal(t, 1, seen[b])

	assert.NotEqual(t, a, Product{PictureURL: "https://cdn/a.png", Title: "Apple", Price: 1100})
}

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		wantErr bool
	}{
		{name: "valid", product: Product{Title: "Apple", Price: 1000}},
		{name: "free item", product: Product{Title: "Sticker", Price: 0}},
		{name: "negative price", product: Product{Title: "Apple", Price: -1}, wantErr: true},
		{name: "empty title", product: Product{Price: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidProduct)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCompare(t *testing.T) {
	a := Product{PictureURL: "a.png", Title: "Apple", Price: 100}
	tests := []struct {
		name string
		b    Product
		want int
	}{
		{"same", a, 0},
		{"title first", Product{PictureURL: "0.png", Title: "Banana", Price: 1}, -1},
		{"picture breaks title tie", Product{PictureURL: "b.png", Title: "Apple", Price: 1}, -1},
		{"price breaks picture tie", Product{PictureURL: "a.png", Title: "Apple", Price: 50}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, a))
		})
	}
}
