package coupon

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported coupon discount strategies.
type Kind string

const (
	// KindPercentage takes Value percent off the subtotal, optionally capped
	// by MaxDiscount.
	KindPercentage Kind = "PERCENTAGE"
	// KindFixedAmount takes Value off once the subtotal reaches MinAmount.
	KindFixedAmount Kind = "FIXED_AMOUNT"
	// KindBuyNPayM makes the cheapest unit of every complete group of
	// MinQuantity units free.
	KindBuyNPayM Kind = "BUY_N_PAY_M"
)

// maxCodeLen bounds coupon codes accepted from clients and ingest files.
const maxCodeLen = 32

var (
	// ErrNotFound is returned by a Repository when no coupon has the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInvalidCode is returned for codes that are not ASCII tokens.
	ErrInvalidCode = errors.New("invalid coupon code")
)

var hundred = decimal.NewFromInt(100)

// Coupon is an immutable discount rule from the static coupon catalog.
type Coupon struct {
	Code        string
	Kind        Kind
	Value       decimal.Decimal
	MinQuantity int
	MinAmount   decimal.NullDecimal
	MaxDiscount decimal.NullDecimal
	Description string
}

// Validate checks that the rule is internally consistent. It is used when
// loading the catalog, never on the checkout path.
func (c *Coupon) Validate() error {
	if _, err := NormalizeCode(c.Code); err != nil {
		return err
	}
	if c.Value.IsNegative() {
		return errors.Errorf("coupon %s: negative value", c.Code)
	}
	if c.MinQuantity < 0 {
		return errors.Errorf("coupon %s: negative min quantity", c.Code)
	}
	if c.MinAmount.Valid && c.MinAmount.Decimal.IsNegative() {
		return errors.Errorf("coupon %s: negative min amount", c.Code)
	}
	if c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsNegative() {
		return errors.Errorf("coupon %s: negative max discount", c.Code)
	}

	switch c.Kind {
	case KindPercentage:
		if c.Value.GreaterThan(hundred) {
			return errors.Errorf("coupon %s: percentage above 100", c.Code)
		}
	case KindFixedAmount:
	case KindBuyNPayM:
		if c.MinQuantity < 2 {
			return errors.Errorf("coupon %s: buy-n-pay-m needs min quantity of at least 2", c.Code)
		}
	default:
		return errors.Errorf("coupon %s: unsupported kind %q", c.Code, c.Kind)
	}
	return nil
}

// NormalizeCode trims and upper-cases a code. Codes are printable ASCII
// tokens without whitespace.
func NormalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxCodeLen {
		return "", ErrInvalidCode
	}
	for i := range len(code) {
		if code[i] <= 0x20 || code[i] > 0x7E {
			return "", ErrInvalidCode
		}
	}
	return strings.ToUpper(code), nil
}

// Repository provides lookup of coupon rules by their normalised code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ListCodes calls fn for every code in the catalog.
	ListCodes(ctx context.Context, fn func(code string) error) error
}
