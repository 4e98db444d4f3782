package payment

import "strings"

// UnknownIssuer is reported when no BIN prefix matches.
const UnknownIssuer = "Unknown Issuer"

// BINTable maps leading card digits to issuer names. Lookups use the longest
// matching prefix.
type BINTable map[string]string

// DefaultBINTable covers the major networks by their public prefixes.
func DefaultBINTable() BINTable {
	t := BINTable{
		"4":    "Visa",
		"34":   "American Express",
		"37":   "American Express",
		"35":   "JCB",
		"36":   "Diners Club",
		"38":   "Diners Club",
		"6011": "Discover",
		"65":   "Discover",
		"62":   "UnionPay",
		"9792": "Troy",
	}
	for _, p := range []string{"51", "52", "53", "54", "55", "22", "23", "24", "25", "26", "27"} {
		t[p] = "Mastercard"
	}
	for _, p := range []string{"5018", "5020", "5038", "6304", "6759"} {
		t[p] = "Maestro"
	}
	return t
}

// Issuer returns the issuer for a normalised card number.
func (t BINTable) Issuer(number string) string {
	best, name := 0, UnknownIssuer
	for prefix, issuer := range t {
		if len(prefix) > best && strings.HasPrefix(number, prefix) {
			best, name = len(prefix), issuer
		}
	}
	return name
}
