package cart

import "github.com/shopspring/decimal"

// PricingPolicy derives shipping and tax from a cart subtotal.
type PricingPolicy struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPricing: free shipping above KSh 75,000, otherwise KSh 7,500; 16% VAT.
func DefaultPricing() PricingPolicy {
	return PricingPolicy{
		FreeShippingThreshold: decimal.NewFromInt(75000),
		ShippingFee:           decimal.NewFromInt(7500),
		TaxRate:               decimal.NewFromFloat(0.16),
	}
}

// NoCharges quotes the subtotal as the total.
func NoCharges() PricingPolicy {
	return PricingPolicy{}
}

type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func (p PricingPolicy) Quote(subtotal decimal.Decimal) Quote {
	shipping := decimal.Zero
	if subtotal.IsPositive() && !subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = p.ShippingFee
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)

	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// FreeShippingGap is how much more the customer must add to qualify for free
// shipping. Zero when already free or when the cart is empty.
func (p PricingPolicy) FreeShippingGap(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || subtotal.GreaterThan(p.FreeShippingThreshold) || p.ShippingFee.IsZero() {
		return decimal.Zero
	}
	return p.FreeShippingThreshold.Sub(subtotal)
}

func (l *Ledger) Quote(p PricingPolicy) Quote {
	return p.Quote(l.Total())
}
