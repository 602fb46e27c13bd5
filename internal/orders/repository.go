package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order with this id already exists")
)

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// Repository stores confirmed orders. Create writes the order and its
// order.confirmed outbox event atomically.
type Repository interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	// ListBySession returns the session's orders, newest first, narrowed to
	// those matching query when it is not blank.
	ListBySession(ctx context.Context, sessionID, query string) ([]*domain.Order, error)
	EventSource
}

// EventSource is the outbox side of the repository.
type EventSource interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Matches reports whether the order number or any item name contains query,
// ignoring case.
func Matches(order *domain.Order, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(order.ID), q) {
		return true
	}
	for _, item := range order.Items {
		if strings.Contains(strings.ToLower(item.ProductName), q) {
			return true
		}
	}
	return false
}
