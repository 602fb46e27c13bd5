package cart

import (
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Line is one product/quantity pairing. Product is the snapshot taken when the
// product was first added.
type Line struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Ledger holds the selections of a single session. It is not safe for
// concurrent use; each session has exactly one actor mutating it.
//
// None of the operations fail: unknown ids, non-positive quantities and
// negative prices are no-ops or removals.
type Ledger struct {
	lines map[int64]*Line
	order []int64 // insertion order of product ids
}

func NewLedger() *Ledger {
	return &Ledger{lines: make(map[int64]*Line)}
}

// Restore rebuilds a ledger from stored lines. Lines that would break the
// ledger invariants are dropped and duplicates are merged.
func Restore(lines []Line) *Ledger {
	l := NewLedger()
	for _, line := range lines {
		l.AddItem(line.Product, line.Quantity)
	}
	return l
}

func (l *Ledger) AddItem(product domain.Product, quantity int) {
	if quantity <= 0 || product.Price.IsNegative() {
		return
	}

	if existing, ok := l.lines[product.ID]; ok {
		existing.Quantity += quantity
		return
	}

	l.lines[product.ID] = &Line{Product: product, Quantity: quantity}
	l.order = append(l.order, product.ID)
}

func (l *Ledger) SetQuantity(productID int64, quantity int) {
	line, ok := l.lines[productID]
	if !ok {
		return
	}
	if quantity <= 0 {
		l.RemoveItem(productID)
		return
	}
	line.Quantity = quantity
}

func (l *Ledger) RemoveItem(productID int64) {
	if _, ok := l.lines[productID]; !ok {
		return
	}
	delete(l.lines, productID)
	for i, id := range l.order {
		if id == productID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) Clear() {
	l.lines = make(map[int64]*Line)
	l.order = nil
}

// Total is the sum of unit price times quantity over all lines.
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Count is the sum of quantities, not the number of lines.
func (l *Ledger) Count() int {
	count := 0
	for _, line := range l.lines {
		count += line.Quantity
	}
	return count
}

// Len returns the number of distinct lines.
func (l *Ledger) Len() int {
	return len(l.lines)
}

func (l *Ledger) Quantity(productID int64) int {
	if line, ok := l.lines[productID]; ok {
		return line.Quantity
	}
	return 0
}

// Lines returns a copy of the lines in the order they were first added.
func (l *Ledger) Lines() []Line {
	lines := make([]Line, 0, len(l.order))
	for _, id := range l.order {
		lines = append(lines, *l.lines[id])
	}
	return lines
}
