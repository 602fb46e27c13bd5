package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Category is a product category with the number of products in it.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Store is the product catalog. Reads are public, writes are expected to be
// gated by the caller.
type Store interface {
	List(ctx context.Context, f Filter) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Create(ctx context.Context, in ProductInput) (*domain.Product, error)
	// Update merges the non-nil fields of patch into the stored product.
	Update(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]Category, error)
	Close() error
}

func categoriesOf(products []domain.Product) []Category {
	out := make([]Category, 0)
	index := make(map[string]int)
	for _, p := range products {
		i, ok := index[p.Category]
		if !ok {
			i = len(out)
			index[p.Category] = i
			out = append(out, Category{Name: p.Category})
		}
		out[i].Count++
	}
	return out
}

// Related returns up to limit products other than id, in catalog order.
func Related(products []domain.Product, id int64, limit int) []domain.Product {
	out := make([]domain.Product, 0, limit)
	for _, p := range products {
		if len(out) == limit {
			break
		}
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
