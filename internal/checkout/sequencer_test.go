package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	err   error
	calls int
	last  *domain.Order
}

func (m *mockGateway) Authorize(_ context.Context, order *domain.Order) (*payment.Confirmation, error) {
	m.calls++
	m.last = order
	if m.err != nil {
		return nil, m.err
	}
	return &payment.Confirmation{TransactionID: "MP42", Method: order.PaymentMethod, Amount: order.Total}, nil
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestSequencer(gw payment.Gateway) *Sequencer {
	return New(gw, cart.DefaultPricing(),
		WithClock(func() time.Time { return fixedNow }),
		WithOrderIDs(func(time.Time) string { return "ORD-TEST" }))
}

func fillShipping(t *testing.T, s *Sequencer) {
	t.Helper()
	values := map[Field]string{
		FieldFirstName: "Jane",
		FieldLastName:  "Doe",
		FieldEmail:     "jane@example.com",
		FieldPhone:     "0712345678",
		FieldAddress:   "1 Moi Avenue",
		FieldCity:      "Nairobi",
	}
	for f, v := range values {
		require.NoError(t, s.Edit(f, v))
	}
}

func filledLedger() *cart.Ledger {
	l := cart.NewLedger()
	l.AddItem(domain.Product{ID: 1, Name: "JBL Charge 5", Price: decimal.NewFromInt(1000)}, 2)
	l.AddItem(domain.Product{ID: 2, Name: "Fitbit Versa 4", Price: decimal.NewFromInt(500)}, 1)
	return l
}

func toPayment(t *testing.T, s *Sequencer) {
	t.Helper()
	fillShipping(t, s)
	require.NoError(t, s.Advance())
	require.Equal(t, StagePayment, s.Stage())
}

func TestNew_Defaults(t *testing.T) {
	s := newTestSequencer(&mockGateway{})

	st := s.State()
	assert.Equal(t, StageShipping, st.Stage)
	assert.Equal(t, domain.PaymentMethodMobileMoney, st.Form.PaymentMethod)
	assert.Empty(t, st.Errors)
	assert.Equal(t, fixedNow, st.OpenedAt)
}

func TestAdvance_MissingFields(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	require.NoError(t, s.Edit(FieldFirstName, "Jane"))

	err := s.Advance()
	require.ErrorIs(t, err, ErrIncompleteForm)
	assert.Equal(t, StageShipping, s.Stage())

	errs := s.Errors()
	assert.Len(t, errs, 5)
	assert.Equal(t, "Last name is required", errs[FieldLastName])
	assert.Equal(t, "City is required", errs[FieldCity])
	assert.NotContains(t, errs, FieldFirstName)
	assert.NotContains(t, errs, FieldPostalCode)
}

func TestAdvance_OneMissingField(t *testing.T) {
	for _, req := range shippingRequired {
		for name, blank := range map[string]string{"empty": "", "whitespace": "   "} {
			t.Run(string(req.field)+"/"+name, func(t *testing.T) {
				s := newTestSequencer(&mockGateway{})
				fillShipping(t, s)
				require.NoError(t, s.Edit(req.field, blank))

				require.ErrorIs(t, s.Advance(), ErrIncompleteForm)
				assert.Equal(t, StageShipping, s.Stage())
				assert.Equal(t, map[Field]string{req.field: req.message}, map[Field]string(s.Errors()))
			})
		}
	}
}

func TestAdvance_RecomputesErrors(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	require.ErrorIs(t, s.Advance(), ErrIncompleteForm)
	require.Len(t, s.Errors(), 6)

	fillShipping(t, s)
	require.NoError(t, s.Edit(FieldEmail, ""))
	require.ErrorIs(t, s.Advance(), ErrIncompleteForm)
	assert.Len(t, s.Errors(), 1)
}

func TestEdit_ClearsFieldError(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	require.ErrorIs(t, s.Advance(), ErrIncompleteForm)
	require.Contains(t, s.Errors(), FieldEmail)

	require.NoError(t, s.Edit(FieldEmail, "a@b.c"))
	assert.NotContains(t, s.Errors(), FieldEmail)
	assert.Contains(t, s.Errors(), FieldCity)
}

func TestEdit_UnknownField(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	assert.ErrorIs(t, s.Edit(Field("shoeSize"), "42"), ErrUnknownField)
}

func TestAdvance_ToPayment(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	toPayment(t, s)
	assert.Empty(t, s.Errors())
}

func TestAdvance_OnlyFromShipping(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	toPayment(t, s)
	assert.ErrorIs(t, s.Advance(), ErrInvalidTransition)
}

func TestBack_KeepsData(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	toPayment(t, s)

	require.NoError(t, s.Back())
	assert.Equal(t, StageShipping, s.Stage())
	assert.Equal(t, "Jane", s.State().Form.Customer.FirstName)

	require.NoError(t, s.Advance())
	assert.Equal(t, StagePayment, s.Stage())
}

func TestBack_FromShippingIsInvalid(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	assert.ErrorIs(t, s.Back(), ErrInvalidTransition)
}

func TestSubmit_Success(t *testing.T) {
	gw := &mockGateway{}
	s := newTestSequencer(gw)
	toPayment(t, s)
	require.NoError(t, s.Edit(FieldMobileMoneyPhone, "0712 345 678"))
	ledger := filledLedger()

	order, err := s.Submit(context.Background(), ledger, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, s.Stage())
	assert.Equal(t, "ORD-TEST", order.ID)
	assert.Equal(t, "ORD-TEST", s.State().OrderID)
	assert.Equal(t, "sess-1", order.SessionID)
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "MP42", order.TransactionID)
	assert.Equal(t, "0712345678", order.MobileMoneyPhone)
	assert.Equal(t, domain.Currency, order.Currency)
	assert.Equal(t, fixedNow, order.CreatedAt)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "JBL Charge 5", order.Items[0].ProductName)
	assert.Equal(t, "2000", order.Items[0].Subtotal.String())
	assert.Equal(t, "2500", order.Subtotal.String())
	assert.Equal(t, "7500", order.Shipping.String())
	assert.Equal(t, "400", order.Tax.String())
	assert.Equal(t, "10400", order.Total.String())
	assert.Equal(t, 1, gw.calls)

	assert.Equal(t, 3, ledger.Count(), "the sequencer never clears the ledger itself")
}

func TestSubmit_RequiresMobileMoneyNumber(t *testing.T) {
	gw := &mockGateway{}
	s := newTestSequencer(gw)
	toPayment(t, s)

	_, err := s.Submit(context.Background(), filledLedger(), "sess-1")
	require.ErrorIs(t, err, ErrIncompleteForm)
	assert.Equal(t, StagePayment, s.Stage())
	assert.Equal(t, "M-Pesa phone number is required", s.Errors()[FieldMobileMoneyPhone])
	assert.Zero(t, gw.calls)
}

func TestSubmit_CardUnavailable(t *testing.T) {
	gw := &mockGateway{}
	s := newTestSequencer(gw)
	toPayment(t, s)
	require.NoError(t, s.SelectPaymentMethod(domain.PaymentMethodCard))

	_, err := s.Submit(context.Background(), filledLedger(), "sess-1")
	require.ErrorIs(t, err, ErrIncompleteForm)
	assert.Contains(t, s.Errors(), FieldPaymentMethod)
	assert.Zero(t, gw.calls)
}

func TestSubmit_EmptyCart(t *testing.T) {
	gw := &mockGateway{}
	s := newTestSequencer(gw)
	toPayment(t, s)
	require.NoError(t, s.Edit(FieldMobileMoneyPhone, "0712345678"))

	_, err := s.Submit(context.Background(), cart.NewLedger(), "sess-1")
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, StagePayment, s.Stage())
	assert.Zero(t, gw.calls)
}

func TestSubmit_FromShipping(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	_, err := s.Submit(context.Background(), filledLedger(), "sess-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmit_GatewayFailure(t *testing.T) {
	gw := &mockGateway{err: payment.ErrDeclined}
	s := newTestSequencer(gw)
	toPayment(t, s)
	require.NoError(t, s.Edit(FieldMobileMoneyPhone, "0712345678"))

	order, err := s.Submit(context.Background(), filledLedger(), "sess-1")
	require.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, payment.ErrDeclined)
	assert.Nil(t, order)
	assert.Equal(t, StageFailed, s.Stage())
	assert.Equal(t, FailureMessage, s.State().Failure)
	assert.Empty(t, s.State().OrderID)

	_, err = s.Submit(context.Background(), filledLedger(), "sess-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.Back())
	assert.Equal(t, StagePayment, s.Stage())
	assert.Empty(t, s.State().Failure)

	gw.err = nil
	order, err = s.Submit(context.Background(), filledLedger(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, s.Stage())
	assert.NotNil(t, order)
}

func TestCompleted_RejectsFurtherActions(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	toPayment(t, s)
	require.NoError(t, s.Edit(FieldMobileMoneyPhone, "0712345678"))
	_, err := s.Submit(context.Background(), filledLedger(), "sess-1")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Edit(FieldCity, "Mombasa"), ErrCheckoutCompleted)
	assert.ErrorIs(t, s.Back(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Advance(), ErrInvalidTransition)
	_, err = s.Submit(context.Background(), filledLedger(), "sess-1")
	assert.ErrorIs(t, err, ErrCheckoutCompleted)
}

func TestResume_ContinuesFromState(t *testing.T) {
	s := newTestSequencer(&mockGateway{})
	toPayment(t, s)
	stored := s.State()

	resumed := Resume(stored, &mockGateway{}, cart.DefaultPricing())
	assert.Equal(t, StagePayment, resumed.Stage())
	assert.Equal(t, "Nairobi", resumed.State().Form.Customer.City)

	require.NoError(t, resumed.Edit(FieldCity, "Kisumu"))
	assert.Equal(t, "Nairobi", stored.Form.Customer.City)
}

func TestNewOrderID(t *testing.T) {
	id := NewOrderID(time.UnixMilli(1700000000000))
	assert.Regexp(t, `^ORD-1700000000000-[0-9A-F]{6}$`, id)
	assert.NotEqual(t, id, NewOrderID(time.UnixMilli(1700000000000)))
}
