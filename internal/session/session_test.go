package session

import (
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(id string) *Session {
	s := New(id, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	l := cart.NewLedger()
	l.AddItem(domain.Product{ID: 1, Name: "iPhone 15 Pro", Price: decimal.NewFromInt(999), Category: "Electronics"}, 2)
	l.AddItem(domain.Product{ID: 7, Name: "JBL Charge 5", Price: decimal.RequireFromString("179.50"), Category: "Audio"}, 1)
	s.StoreLedger(l)
	s.Checkout = &checkout.State{
		Stage:  checkout.StageShipping,
		Errors: checkout.FieldErrors{checkout.FieldCity: "City is required"},
	}
	return s
}

func TestLedgerRoundTrip(t *testing.T) {
	s := sampleSession("s1")

	l := s.Ledger()
	assert.Equal(t, 3, l.Count())
	assert.Equal(t, "2177.5", l.Total().String())

	l.SetQuantity(1, 0)
	s.StoreLedger(l)
	require.Len(t, s.Lines, 1)
	assert.Equal(t, int64(7), s.Lines[0].Product.ID)
}

func TestClone_IsDeep(t *testing.T) {
	s := sampleSession("s1")
	c := s.Clone()

	c.Lines[0].Quantity = 99
	c.Checkout.Stage = checkout.StagePayment
	c.Checkout.Errors[checkout.FieldEmail] = "Email is required"

	assert.Equal(t, 2, s.Lines[0].Quantity)
	assert.Equal(t, checkout.StageShipping, s.Checkout.Stage)
	assert.Len(t, s.Checkout.Errors, 1)
}
