package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const EventOrderConfirmed = "order.confirmed"

type eventItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// OrderConfirmedEvent is the payload published for every confirmed order.
type OrderConfirmedEvent struct {
	OrderID       string               `json:"order_id"`
	SessionID     string               `json:"session_id"`
	Email         string               `json:"email"`
	Items         []eventItem          `json:"items"`
	Total         decimal.Decimal      `json:"total"`
	Currency      string               `json:"currency"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	TransactionID string               `json:"transaction_id"`
	ConfirmedAt   time.Time            `json:"confirmed_at"`
}

func newOrderConfirmedPayload(order *domain.Order) ([]byte, error) {
	ev := OrderConfirmedEvent{
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		Email:         order.Customer.Email,
		Items:         make([]eventItem, 0, len(order.Items)),
		Total:         order.Total,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		TransactionID: order.TransactionID,
		ConfirmedAt:   order.CreatedAt,
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, eventItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal order confirmed event: %w", err)
	}
	return payload, nil
}
