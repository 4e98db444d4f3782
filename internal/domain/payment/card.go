package payment

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const cardNumberLen = 16

var (
	expiryPattern = regexp.MustCompile(`^(\d{2})/(\d{2})$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
)

// NormalizeNumber strips the spaces and dashes people type between digit
// groups.
func NormalizeNumber(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(number))
}

// Luhn reports whether digits passes the mod-10 checksum. Non-digit input
// fails.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// validateCard runs every field check and returns all failures in field
// order.
func validateCard(card Card, now time.Time) []FieldError {
	var failures []FieldError

	number := NormalizeNumber(card.Number)
	if len(number) != cardNumberLen || !Luhn(number) {
		failures = append(failures, FieldError{
			Field:   "number",
			Reason:  ReasonInvalidCardNumber,
			Message: "card number must be 16 digits and pass the checksum",
		})
	}

	if strings.TrimSpace(card.Holder) == "" {
		failures = append(failures, FieldError{
			Field:   "holder",
			Reason:  ReasonMissingHolder,
			Message: "cardholder name is required",
		})
	}

	if f, ok := validateExpiry(card.Expiry, now); !ok {
		failures = append(failures, f)
	}

	if !cvvPattern.MatchString(strings.TrimSpace(card.CVV)) {
		failures = append(failures, FieldError{
			Field:   "cvv",
			Reason:  ReasonInvalidCVV,
			Message: "cvv must be 3 or 4 digits",
		})
	}

	return failures
}

// validateExpiry accepts MM/YY. A card is valid through the last day of its
// expiry month.
func validateExpiry(expiry string, now time.Time) (FieldError, bool) {
	malformed := FieldError{
		Field:   "expiry",
		Reason:  ReasonMalformedExpiry,
		Message: "expiry must be a valid MM/YY date",
	}

	m := expiryPattern.FindStringSubmatch(strings.TrimSpace(expiry))
	if m == nil {
		return malformed, false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return malformed, false
	}

	year += 2000
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return FieldError{
			Field:   "expiry",
			Reason:  ReasonCardExpired,
			Message: "card has expired",
		}, false
	}
	return FieldError{}, true
}
