package order

import (
	"fmt"

	"storefront/internal/cart"

	"github.com/shopspring/decimal"
)

// Pricing is the order's money breakdown. For every persisted order
// Subtotal + Shipping + Tax - Discount == Total exactly.
type Pricing struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

func (p Pricing) Balanced() bool {
	return p.Subtotal.Add(p.Shipping).Add(p.Tax).Sub(p.Discount).Equal(p.Total)
}

// LinesSubtotal sums snapshot price times quantity.
func LinesSubtotal(lines []cart.Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Reconcile checks a client-submitted breakdown against the cart lines and
// returns the breakdown to persist. The subtotal always comes from the
// lines, the total is always recomputed, and both submitted values must
// agree with the server's within tolerance.
func Reconcile(lines []cart.Line, submitted Pricing, tolerance decimal.Decimal) (Pricing, error) {
	out := Pricing{
		Subtotal: LinesSubtotal(lines).Round(2),
		Shipping: submitted.Shipping.Round(2),
		Tax:      submitted.Tax.Round(2),
		Discount: submitted.Discount.Round(2),
	}

	for name, v := range map[string]decimal.Decimal{
		"shipping": out.Shipping,
		"tax":      out.Tax,
		"discount": out.Discount,
	} {
		if v.IsNegative() {
			return Pricing{}, fmt.Errorf("%w: %s must not be negative", ErrInvalidPricing, name)
		}
	}

	if !withinTolerance(submitted.Subtotal, out.Subtotal, tolerance) {
		return Pricing{}, fmt.Errorf("%w: subtotal %s, cart subtotal %s",
			ErrPricingMismatch, submitted.Subtotal.StringFixed(2), out.Subtotal.StringFixed(2))
	}

	gross := out.Subtotal.Add(out.Shipping).Add(out.Tax)
	if out.Discount.GreaterThan(gross) {
		return Pricing{}, fmt.Errorf("%w: discount %s exceeds %s",
			ErrInvalidPricing, out.Discount.StringFixed(2), gross.StringFixed(2))
	}
	out.Total = gross.Sub(out.Discount)

	if !withinTolerance(submitted.Total, out.Total, tolerance) {
		return Pricing{}, fmt.Errorf("%w: total %s, expected %s",
			ErrPricingMismatch, submitted.Total.StringFixed(2), out.Total.StringFixed(2))
	}

	return out, nil
}

func withinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
