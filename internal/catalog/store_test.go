package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs the same behaviour checks against every Store.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("list returns seed", func(t *testing.T) {
		s := newStore(t)
		products, err := s.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, products, 8)
		assert.Equal(t, "iPhone 15 Pro", products[0].Name)
		assert.True(t, decimal.NewFromInt(999).Equal(products[0].Price))
	})

	t.Run("list filters", func(t *testing.T) {
		s := newStore(t)
		products, err := s.List(ctx, Filter{Category: "Audio", Sort: SortPriceLow})
		require.NoError(t, err)
		assert.Equal(t, []int64{7, 3}, ids(products))
	})

	t.Run("get", func(t *testing.T) {
		s := newStore(t)
		p, err := s.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, `MacBook Pro 16"`, p.Name)
		assert.Equal(t, "Laptops", p.Category)
		assert.False(t, p.CreatedAt.IsZero())
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, 404)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("create assigns max plus one", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Delete(ctx, 3))

		p, err := s.Create(ctx, validInput())
		require.NoError(t, err)
		assert.Equal(t, int64(9), p.ID)

		got, err := s.Get(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, "Kindle Paperwhite", got.Name)
		assert.True(t, decimal.NewFromInt(149).Equal(got.Price))
	})

	t.Run("create rejects invalid", func(t *testing.T) {
		s := newStore(t)
		in := validInput()
		in.Category = ""
		_, err := s.Create(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidProduct)

		products, err := s.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Len(t, products, 8)
	})

	t.Run("update merges", func(t *testing.T) {
		s := newStore(t)
		price := decimal.RequireFromString("949.50")
		p, err := s.Update(ctx, 1, ProductPatch{Price: &price})
		require.NoError(t, err)
		assert.Equal(t, "iPhone 15 Pro", p.Name)
		assert.Equal(t, "949.5", p.Price.String())

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.True(t, price.Equal(got.Price))
		assert.Equal(t, "Electronics", got.Category)
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)
		name := "x"
		_, err := s.Update(ctx, 99, ProductPatch{Name: &name})
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("update rejects invalid", func(t *testing.T) {
		s := newStore(t)
		negative := decimal.NewFromInt(-5)
		_, err := s.Update(ctx, 1, ProductPatch{Price: &negative})
		assert.ErrorIs(t, err, ErrInvalidProduct)

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(999).Equal(got.Price))
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Delete(ctx, 8))
		_, err := s.Get(ctx, 8)
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.ErrorIs(t, s.Delete(ctx, 8), ErrProductNotFound)
	})

	t.Run("categories", func(t *testing.T) {
		s := newStore(t)
		cats, err := s.Categories(ctx)
		require.NoError(t, err)
		assert.Len(t, cats, 4)
		assert.Equal(t, Category{Name: "Electronics", Count: 2}, cats[0])
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s := NewMemoryStore(SeedProducts())
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func setupTestDB(t *testing.T) *SQLiteStore {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.RunMigrations())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		return setupTestDB(t)
	})
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	s := setupTestDB(t)
	require.NoError(t, s.RunMigrations())

	products, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, products, 8)
}

func TestSQLiteStore_SeedMatchesMemorySeed(t *testing.T) {
	s := setupTestDB(t)
	products, err := s.List(context.Background(), Filter{})
	require.NoError(t, err)

	seed := SeedProducts()
	require.Len(t, products, len(seed))
	for i := range seed {
		assert.Equal(t, seed[i].Name, products[i].Name)
		assert.True(t, seed[i].Price.Equal(products[i].Price))
		assert.Equal(t, seed[i].Image, products[i].Image)
		assert.True(t, seed[i].CreatedAt.Equal(products[i].CreatedAt))
	}
}

func TestSQLiteStore_CancelledContext(t *testing.T) {
	s := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.List(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}
