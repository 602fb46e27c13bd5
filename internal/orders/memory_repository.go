package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

type memoryEvent struct {
	event     OutboxEvent
	processed bool
}

type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	events []*memoryEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderItem(nil), o.Items...)
	return &out
}

func (m *MemoryRepository) Create(_ context.Context, order *domain.Order) error {
	payload, err := newOrderConfirmedPayload(order)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; ok {
		return ErrDuplicateOrder
	}
	m.orders[order.ID] = cloneOrder(order)
	m.events = append(m.events, &memoryEvent{event: OutboxEvent{
		ID:          int64(len(m.events) + 1),
		AggregateID: order.ID,
		EventType:   EventOrderConfirmed,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}})
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryRepository) ListBySession(_ context.Context, sessionID, query string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Order
	for _, o := range m.orders {
		if o.SessionID == sessionID && Matches(o, query) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*OutboxEvent
	for _, e := range m.events {
		if len(out) == limit {
			break
		}
		if !e.processed {
			ev := e.event
			out = append(out, &ev)
		}
	}
	return out, nil
}

func (m *MemoryRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.events {
		if e.event.ID == id {
			e.processed = true
			return nil
		}
	}
	return nil
}
