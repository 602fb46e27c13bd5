package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	now      func() time.Time
}

// NewMemoryStore creates a store holding the given products.
func NewMemoryStore(products []domain.Product) *MemoryStore {
	s := &MemoryStore{
		products: make(map[int64]domain.Product, len(products)),
		now:      time.Now,
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *MemoryStore) all() []domain.Product {
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.Apply(s.all()), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

// Create assigns the next id after the current maximum.
func (s *MemoryStore) Create(_ context.Context, in ProductInput) (*domain.Product, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for id := range s.products {
		if id > maxID {
			maxID = id
		}
	}
	p := domain.Product{
		ID:          maxID + 1,
		Name:        in.Name,
		Price:       in.Price,
		Category:    in.Category,
		Image:       in.Image,
		Description: in.Description,
		Stock:       in.Stock,
		CreatedAt:   s.now().UTC(),
	}
	s.products[p.ID] = p
	return &p, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	in := patch.apply(current).Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	current.Name = in.Name
	current.Price = in.Price
	current.Category = in.Category
	current.Image = in.Image
	current.Description = in.Description
	current.Stock = in.Stock
	s.products[id] = current
	return &current, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) Categories(_ context.Context) ([]Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return categoriesOf(s.all()), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
