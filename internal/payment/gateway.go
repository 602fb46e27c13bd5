package payment

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidNumber     = errors.New("invalid mobile money number")
	ErrDeclined          = errors.New("payment declined: insufficient funds")
	ErrUnavailable       = errors.New("payment provider unavailable")
	ErrUnsupportedMethod = errors.New("payment method not supported")
)

// Confirmation is the proof of a successful authorization.
type Confirmation struct {
	TransactionID string
	Method        domain.PaymentMethod
	Amount        decimal.Decimal
	AuthorizedAt  time.Time
}

// Gateway authorizes the total of an order. Implementations must honour ctx
// cancellation.
type Gateway interface {
	Authorize(ctx context.Context, order *domain.Order) (*Confirmation, error)
}

// IsTransient reports whether retrying the same request may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
