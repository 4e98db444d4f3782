// Package pricing computes cart totals and coupon discounts. Everything here
// is pure: no I/O, no clocks, no randomness.
package pricing

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-orders/internal/domain/cart"
	"github.com/xenking/kart-orders/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// Totals is the priced view of a cart.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	// CouponApplied reports whether the coupon produced a non-zero discount.
	CouponApplied bool
}

// Price computes subtotal, discount and total for the lines with an optional
// coupon. A coupon the cart does not qualify for yields a zero discount.
func Price(lines []cart.Line, c *coupon.Coupon) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Amount())
	}

	discount := decimal.Zero
	if c != nil && eligible(c, lines, subtotal) {
		discount = Discount(c, lines, subtotal)
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:      subtotal.Round(2),
		Discount:      discount.Round(2),
		Total:         total.Round(2),
		CouponApplied: discount.IsPositive(),
	}
}

// Discount returns the raw discount for a coupon, ignoring eligibility gates.
func Discount(c *coupon.Coupon, lines []cart.Line, subtotal decimal.Decimal) decimal.Decimal {
	switch c.Kind {
	case coupon.KindPercentage:
		return percentage(c, subtotal)
	case coupon.KindFixedAmount:
		return c.Value
	case coupon.KindBuyNPayM:
		return cheapestUnits(lines, c.MinQuantity)
	default:
		return decimal.Zero
	}
}

// eligible applies the minimum quantity and minimum amount gates.
func eligible(c *coupon.Coupon, lines []cart.Line, subtotal decimal.Decimal) bool {
	if c.Kind == coupon.KindBuyNPayM && c.MinQuantity < 1 {
		return false
	}
	if c.MinQuantity > 0 && quantity(lines) < c.MinQuantity {
		return false
	}
	if c.MinAmount.Valid && subtotal.LessThan(c.MinAmount.Decimal) {
		return false
	}
	return true
}

func percentage(c *coupon.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(c.Value).Div(hundred).Round(2)
	if c.MaxDiscount.Valid && amount.GreaterThan(c.MaxDiscount.Decimal) {
		amount = c.MaxDiscount.Decimal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// cheapestUnits implements "buy N pay for the rest": the cart is viewed as
// one unit per quantity sorted by ascending unit price (stable on cart
// order), and floor(units/n) of the cheapest units are free. Lines are
// walked instead of expanding every unit.
func cheapestUnits(lines []cart.Line, n int) decimal.Decimal {
	if n < 1 {
		return decimal.Zero
	}
	free := quantity(lines) / n
	if free == 0 {
		return decimal.Zero
	}

	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b cart.Line) int {
		return a.UnitPrice.Cmp(b.UnitPrice)
	})

	discount := decimal.Zero
	for _, l := range sorted {
		if free == 0 {
			break
		}
		take := min(l.Quantity, free)
		discount = discount.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(take))))
		free -= take
	}
	return discount
}

func quantity(lines []cart.Line) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}
