package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/google/uuid"
)

// State is everything the sequencer needs to resume a checkout. It is stored
// alongside the session and never holds an order.
type State struct {
	Stage    Stage       `json:"stage"`
	Form     Form        `json:"form"`
	Errors   FieldErrors `json:"errors,omitempty"`
	Failure  string      `json:"failure,omitempty"`
	OrderID  string      `json:"order_id,omitempty"`
	OpenedAt time.Time   `json:"opened_at"`
}

func (s State) clone() State {
	s.Errors = s.Errors.clone()
	return s
}

type Option func(*Sequencer)

func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

// WithOrderIDs replaces the order id generator.
func WithOrderIDs(gen func(time.Time) string) Option {
	return func(s *Sequencer) { s.newOrderID = gen }
}

// Sequencer drives one checkout through shipping, payment and submission.
// Like the ledger it belongs to a single session and is not safe for
// concurrent use.
type Sequencer struct {
	state      State
	gateway    payment.Gateway
	pricing    cart.PricingPolicy
	now        func() time.Time
	newOrderID func(time.Time) string
}

func New(gateway payment.Gateway, pricing cart.PricingPolicy, opts ...Option) *Sequencer {
	s := newSequencer(gateway, pricing, opts)
	s.state = State{
		Stage:    StageShipping,
		Form:     Form{PaymentMethod: domain.PaymentMethodMobileMoney},
		Errors:   FieldErrors{},
		OpenedAt: s.now(),
	}
	return s
}

// Resume continues a checkout from a stored state.
func Resume(state State, gateway payment.Gateway, pricing cart.PricingPolicy, opts ...Option) *Sequencer {
	s := newSequencer(gateway, pricing, opts)
	s.state = state.clone()
	if s.state.Stage == "" {
		s.state.Stage = StageShipping
	}
	return s
}

func newSequencer(gateway payment.Gateway, pricing cart.PricingPolicy, opts []Option) *Sequencer {
	s := &Sequencer{
		gateway:    gateway,
		pricing:    pricing,
		now:        time.Now,
		newOrderID: NewOrderID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOrderID returns ids like ORD-1700000000000-3F2A9C.
func NewOrderID(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%d-%s", at.UnixMilli(), suffix)
}

func (s *Sequencer) State() State {
	return s.state.clone()
}

func (s *Sequencer) Stage() Stage {
	return s.state.Stage
}

func (s *Sequencer) Errors() FieldErrors {
	return s.state.Errors.clone()
}

// Edit writes a single form field and clears any error shown for it.
func (s *Sequencer) Edit(field Field, value string) error {
	if s.state.Stage == StageCompleted {
		return ErrCheckoutCompleted
	}
	if err := s.state.Form.set(field, value); err != nil {
		return fmt.Errorf("%w: %s", err, field)
	}
	delete(s.state.Errors, field)
	return nil
}

func (s *Sequencer) SelectPaymentMethod(method domain.PaymentMethod) error {
	return s.Edit(FieldPaymentMethod, string(method))
}

// Advance moves from shipping to payment once every required shipping field
// is filled in. The error set is rebuilt on every call.
func (s *Sequencer) Advance() error {
	if s.state.Stage != StageShipping {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state.Stage, StagePayment)
	}

	errs := s.state.Form.shippingErrors()
	s.state.Errors = errs
	if len(errs) > 0 {
		return ErrIncompleteForm
	}
	s.state.Stage = StagePayment
	return nil
}

// Back returns from payment to shipping, or re-enters payment after a failed
// submission. Form data is kept.
func (s *Sequencer) Back() error {
	var to Stage
	switch s.state.Stage {
	case StagePayment:
		to = StageShipping
	case StageFailed:
		to = StagePayment
	}
	if !CanTransitionTo(s.state.Stage, to) {
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, s.state.Stage)
	}
	s.state.Stage = to
	s.state.Failure = ""
	return nil
}

// Submit authorizes payment for the ledger contents. On success the returned
// order is confirmed and the caller is expected to persist it and clear the
// ledger; the ledger itself is never modified here.
func (s *Sequencer) Submit(ctx context.Context, ledger *cart.Ledger, sessionID string) (*domain.Order, error) {
	switch s.state.Stage {
	case StagePayment:
	case StageCompleted:
		return nil, ErrCheckoutCompleted
	default:
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, s.state.Stage)
	}

	if ledger == nil || ledger.Len() == 0 {
		return nil, ErrEmptyCart
	}

	errs := s.state.Form.shippingErrors()
	for f, msg := range s.state.Form.paymentErrors() {
		errs[f] = msg
	}
	s.state.Errors = errs
	if len(errs) > 0 {
		return nil, ErrIncompleteForm
	}

	order := s.draftOrder(ledger, sessionID)
	conf, err := s.gateway.Authorize(ctx, order)
	if err != nil {
		s.state.Stage = StageFailed
		s.state.Failure = FailureMessage
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	order.TransactionID = conf.TransactionID
	order.Status = domain.OrderStatusConfirmed
	s.state.Stage = StageCompleted
	s.state.Failure = ""
	s.state.OrderID = order.ID
	return order, nil
}

func (s *Sequencer) draftOrder(ledger *cart.Ledger, sessionID string) *domain.Order {
	now := s.now()
	lines := ledger.Lines()
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Category:    line.Product.Category,
			Image:       line.Product.Image,
			UnitPrice:   line.Product.Price,
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal(),
		})
	}

	quote := ledger.Quote(s.pricing)
	form := s.state.Form
	customer := form.Customer
	return &domain.Order{
		ID:               s.newOrderID(now),
		SessionID:        sessionID,
		Items:            items,
		Subtotal:         quote.Subtotal,
		Shipping:         quote.Shipping,
		Tax:              quote.Tax,
		Total:            quote.Total,
		Currency:         domain.Currency,
		Customer:         customer,
		PaymentMethod:    form.PaymentMethod,
		MobileMoneyPhone: payment.NormalizeNumber(form.MobileMoneyPhone),
		CreatedAt:        now.UTC(),
	}
}
