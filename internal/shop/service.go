package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotInCart   = errors.New("item not in cart")
	ErrNoCheckout      = errors.New("no checkout in progress")
)

// persistTimeout bounds the writes made after a payment was authorized. They
// run detached from the request context.
const persistTimeout = 10 * time.Second

// Sessions is the load/save hook pair the shop runs every operation through.
type Sessions interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
}

type CartView struct {
	SessionID       string          `json:"session_id"`
	Lines           []cart.Line     `json:"lines"`
	Count           int             `json:"count"`
	Quote           cart.Quote      `json:"quote"`
	FreeShippingGap decimal.Decimal `json:"free_shipping_gap"`
}

type CheckoutView struct {
	SessionID string `json:"session_id"`
	checkout.State
	Count int        `json:"count"`
	Quote cart.Quote `json:"quote"`
}

// Service runs the cart and checkout operations of one session at a time.
// Each mutating call holds the session's lock while it loads the session,
// changes it and saves it back.
type Service struct {
	sessions Sessions
	locks    *sessionLocks
	catalog  catalog.Store
	orders   orders.Repository
	gateway  payment.Gateway
	pricing  cart.PricingPolicy
	seqOpts  []checkout.Option
	log      *zap.Logger
}

func NewService(
	sessions Sessions,
	products catalog.Store,
	orderRepo orders.Repository,
	gateway payment.Gateway,
	pricing cart.PricingPolicy,
	log *zap.Logger,
	opts ...checkout.Option,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		locks:    newSessionLocks(),
		catalog:  products,
		orders:   orderRepo,
		gateway:  gateway,
		pricing:  pricing,
		seqOpts:  opts,
		log:      log,
	}
}

func (s *Service) cartView(sess *session.Session, ledger *cart.Ledger) *CartView {
	quote := ledger.Quote(s.pricing)
	return &CartView{
		SessionID:       sess.ID,
		Lines:           ledger.Lines(),
		Count:           ledger.Count(),
		Quote:           quote,
		FreeShippingGap: s.pricing.FreeShippingGap(quote.Subtotal),
	}
}

func (s *Service) checkoutView(sess *session.Session, state checkout.State) *CheckoutView {
	ledger := sess.Ledger()
	return &CheckoutView{
		SessionID: sess.ID,
		State:     state,
		Count:     ledger.Count(),
		Quote:     ledger.Quote(s.pricing),
	}
}

func (s *Service) Cart(ctx context.Context, sessionID string) (*CartView, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.cartView(sess, sess.Ledger()), nil
}

// AddToCart adds quantity units of a catalog product, snapshotting its
// current name and price into the cart line.
func (s *Service) AddToCart(ctx context.Context, sessionID string, productID int64, quantity int) (*CartView, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutateCart(ctx, sessionID, func(l *cart.Ledger) error {
		l.AddItem(*product, quantity)
		return nil
	})
}

// UpdateCartItem overwrites a line's quantity; zero or less removes the line.
func (s *Service) UpdateCartItem(ctx context.Context, sessionID string, productID int64, quantity int) (*CartView, error) {
	return s.mutateCart(ctx, sessionID, func(l *cart.Ledger) error {
		if l.Quantity(productID) == 0 {
			return ErrItemNotInCart
		}
		l.SetQuantity(productID, quantity)
		return nil
	})
}

func (s *Service) RemoveCartItem(ctx context.Context, sessionID string, productID int64) (*CartView, error) {
	return s.mutateCart(ctx, sessionID, func(l *cart.Ledger) error {
		if l.Quantity(productID) == 0 {
			return ErrItemNotInCart
		}
		l.RemoveItem(productID)
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) (*CartView, error) {
	return s.mutateCart(ctx, sessionID, func(l *cart.Ledger) error {
		l.Clear()
		return nil
	})
}

func (s *Service) mutateCart(ctx context.Context, sessionID string, fn func(*cart.Ledger) error) (*CartView, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ledger := sess.Ledger()
	if err := fn(ledger); err != nil {
		return nil, err
	}
	sess.StoreLedger(ledger)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.cartView(sess, ledger), nil
}

// OpenCheckout starts a checkout for a non-empty cart. An open checkout is
// returned as is.
func (s *Service) OpenCheckout(ctx context.Context, sessionID string) (*CheckoutView, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Ledger().Len() == 0 {
		return nil, checkout.ErrEmptyCart
	}
	if sess.Checkout != nil {
		return s.checkoutView(sess, *sess.Checkout), nil
	}

	state := checkout.New(s.gateway, s.pricing, s.seqOpts...).State()
	sess.Checkout = &state
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.checkoutView(sess, state), nil
}

func (s *Service) Checkout(ctx context.Context, sessionID string) (*CheckoutView, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Checkout == nil {
		return nil, ErrNoCheckout
	}
	return s.checkoutView(sess, *sess.Checkout), nil
}

// EditCheckout writes the given form fields. Unknown fields reject the whole
// edit.
func (s *Service) EditCheckout(ctx context.Context, sessionID string, fields map[checkout.Field]string) (*CheckoutView, error) {
	return s.step(ctx, sessionID, func(seq *checkout.Sequencer) error {
		for field, value := range fields {
			if err := seq.Edit(field, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// NextCheckout advances from shipping to payment. On ErrIncompleteForm the
// returned view carries the field errors.
func (s *Service) NextCheckout(ctx context.Context, sessionID string) (*CheckoutView, error) {
	return s.step(ctx, sessionID, func(seq *checkout.Sequencer) error {
		return seq.Advance()
	})
}

func (s *Service) BackCheckout(ctx context.Context, sessionID string) (*CheckoutView, error) {
	return s.step(ctx, sessionID, func(seq *checkout.Sequencer) error {
		return seq.Back()
	})
}

// step applies fn to the session's sequencer. Validation failures are saved
// so the field errors survive the request; any other error discards the
// change.
func (s *Service) step(ctx context.Context, sessionID string, fn func(*checkout.Sequencer) error) (*CheckoutView, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Checkout == nil {
		return nil, ErrNoCheckout
	}

	seq := checkout.Resume(*sess.Checkout, s.gateway, s.pricing, s.seqOpts...)
	stepErr := fn(seq)
	if stepErr != nil && !errors.Is(stepErr, checkout.ErrIncompleteForm) {
		return nil, stepErr
	}

	state := seq.State()
	sess.Checkout = &state
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s.checkoutView(sess, state), stepErr
}

type SubmitResult struct {
	Order    *domain.Order `json:"order,omitempty"`
	Checkout *CheckoutView `json:"checkout"`
}

// SubmitCheckout authorizes payment for the cart. On success the order is
// stored, the cart emptied and the checkout closed. A failed payment leaves
// the checkout in the failed stage; a failed order write leaves the cart
// untouched. The session stays locked while the payment is authorized, so a
// second submit finds the checkout already closed.
func (s *Service) SubmitCheckout(ctx context.Context, sessionID string) (*SubmitResult, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Checkout == nil {
		return nil, ErrNoCheckout
	}

	seq := checkout.Resume(*sess.Checkout, s.gateway, s.pricing, s.seqOpts...)
	ledger := sess.Ledger()
	order, submitErr := seq.Submit(ctx, ledger, sess.ID)

	if submitErr != nil {
		if !errors.Is(submitErr, checkout.ErrIncompleteForm) && !errors.Is(submitErr, checkout.ErrPaymentFailed) {
			return nil, submitErr
		}
		if errors.Is(submitErr, checkout.ErrPaymentFailed) {
			s.log.Warn("payment failed", zap.String("session_id", sess.ID), zap.Error(submitErr))
		}
		state := seq.State()
		sess.Checkout = &state
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		return &SubmitResult{Checkout: s.checkoutView(sess, state)}, submitErr
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.orders.Create(persistCtx, order); err != nil {
		s.log.Error("order persist failed after payment",
			zap.String("order_id", order.ID),
			zap.String("transaction_id", order.TransactionID),
			zap.Error(err))
		return nil, fmt.Errorf("store order: %w", err)
	}

	state := seq.State()
	ledger.Clear()
	sess.StoreLedger(ledger)
	sess.Checkout = nil
	if err := s.sessions.Save(persistCtx, sess); err != nil {
		// the order stands; the customer only sees a stale cart
		s.log.Error("session save failed after order",
			zap.String("order_id", order.ID),
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}

	s.log.Info("order confirmed",
		zap.String("order_id", order.ID),
		zap.String("session_id", sess.ID),
		zap.String("total", order.Total.StringFixed(2)))

	return &SubmitResult{Order: order, Checkout: s.checkoutView(sess, state)}, nil
}

// CloseCheckout discards the checkout form. The cart is kept.
func (s *Service) CloseCheckout(ctx context.Context, sessionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Checkout == nil {
		return nil
	}
	sess.Checkout = nil
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Service) Orders(ctx context.Context, sessionID, query string) ([]*domain.Order, error) {
	if sessionID == "" {
		return []*domain.Order{}, nil
	}
	return s.orders.ListBySession(ctx, sessionID, query)
}

// Order returns one of the session's orders. Orders of other sessions are
// reported as not found.
func (s *Service) Order(ctx context.Context, sessionID, orderID string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SessionID != sessionID {
		return nil, orders.ErrOrderNotFound
	}
	return order, nil
}
