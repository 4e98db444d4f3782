package order

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Checkout limits.
const (
	MaxLines       = 50
	MaxQuantity    = 99
	MaxAddressLen  = 300
	MaxNotesLen    = 500
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

var (
	textPolicy   = bluemonday.StrictPolicy()
	phoneCharset = regexp.MustCompile(`^\+?[0-9 ()\-]+$`)
)

// sanitizeText strips markup from free text and returns plain text.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// Delivery holds validated delivery details.
type Delivery struct {
	Address string
	Phone   string
	Notes   string
}

// ValidateDelivery sanitizes and checks delivery details.
func ValidateDelivery(address, phone, notes string) (Delivery, error) {
	d := Delivery{
		Address: sanitizeText(address),
		Phone:   strings.TrimSpace(phone),
		Notes:   sanitizeText(notes),
	}

	switch n := utf8.RuneCountInString(d.Address); {
	case n == 0:
		return Delivery{}, invalid("address", "delivery address is required")
	case n > MaxAddressLen:
		return Delivery{}, invalid("address", "delivery address must be at most %d characters", MaxAddressLen)
	}

	if d.Phone == "" {
		return Delivery{}, invalid("phone", "phone number is required")
	}
	if !phoneCharset.MatchString(d.Phone) {
		return Delivery{}, invalid("phone", "phone number may only contain digits, spaces, dashes, parentheses and a leading +")
	}
	digits := 0
	for _, r := range d.Phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return Delivery{}, invalid("phone", "phone number must have %d to %d digits", minPhoneDigits, maxPhoneDigits)
	}

	if utf8.RuneCountInString(d.Notes) > MaxNotesLen {
		return Delivery{}, invalid("notes", "notes must be at most %d characters", MaxNotesLen)
	}
	return d, nil
}

func validateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return invalid("lines", "at least one line is required")
	}
	if len(lines) > MaxLines {
		return invalid("lines", "at most %d lines are allowed", MaxLines)
	}
	for i, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return invalid(lineField(i, "productId"), "product id is required")
		}
		if l.Quantity < 1 || l.Quantity > MaxQuantity {
			return invalid(lineField(i, "quantity"), "quantity must be between 1 and %d", MaxQuantity)
		}
	}
	return nil
}

func lineField(i int, name string) string {
	return "lines[" + strconv.Itoa(i) + "]." + name
}
