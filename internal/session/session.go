package session

import (
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/checkout"
)

// Session is the per-visitor state that outlives a single request: the cart
// lines and, while one is open, the checkout form.
type Session struct {
	ID        string          `json:"id"`
	Lines     []cart.Line     `json:"lines"`
	Checkout  *checkout.State `json:"checkout,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func New(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Ledger rebuilds the cart ledger from the stored lines.
func (s *Session) Ledger() *cart.Ledger {
	return cart.Restore(s.Lines)
}

func (s *Session) StoreLedger(l *cart.Ledger) {
	s.Lines = l.Lines()
}

func (s *Session) Clone() *Session {
	out := *s
	if s.Lines != nil {
		out.Lines = make([]cart.Line, len(s.Lines))
		copy(out.Lines, s.Lines)
	}
	if s.Checkout != nil {
		st := *s.Checkout
		if s.Checkout.Errors != nil {
			st.Errors = make(checkout.FieldErrors, len(s.Checkout.Errors))
			for k, v := range s.Checkout.Errors {
				st.Errors[k] = v
			}
		}
		out.Checkout = &st
	}
	return &out
}
