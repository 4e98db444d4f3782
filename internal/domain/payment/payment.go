// Package payment simulates card authorization. Every card field is validated
// locally; a real card-network integration would replace Simulator behind
// the same Authorizer interface.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MethodCard is the payment method recorded for card authorizations.
const MethodCard = "card"

// ErrDeclined is wrapped by every DeclinedError.
var ErrDeclined = errors.New("payment declined")

// Reason is a machine-readable decline reason tied to a single card field.
type Reason string

// Decline reasons.
const (
	ReasonInvalidCardNumber Reason = "invalid_card_number"
	ReasonMissingHolder     Reason = "missing_cardholder"
	ReasonMalformedExpiry   Reason = "malformed_expiry"
	ReasonCardExpired       Reason = "card_expired"
	ReasonInvalidCVV        Reason = "invalid_cvv"
	ReasonInvalidAmount     Reason = "invalid_amount"
)

// Card holds the card data submitted at checkout.
type Card struct {
	Number string
	Holder string
	// Expiry is in MM/YY form.
	Expiry string
	CVV    string
}

// Receipt is the proof of authorization attached to an order.
type Receipt struct {
	TransactionID     string
	AuthorizationCode string
	IssuerName        string
	Amount            decimal.Decimal
	Method            string
}

// FieldError describes why one field failed validation.
type FieldError struct {
	Field   string
	Reason  Reason
	Message string
}

// DeclinedError lists every failing field of a declined authorization.
type DeclinedError struct {
	Fields []FieldError
}

func (e *DeclinedError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "payment declined: " + strings.Join(parts, "; ")
}

// Unwrap makes errors.Is(err, ErrDeclined) hold.
func (e *DeclinedError) Unwrap() error {
	return ErrDeclined
}

// Reason returns the first decline reason.
func (e *DeclinedError) Reason() Reason {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].Reason
}

// Has reports whether the decline includes reason.
func (e *DeclinedError) Has(reason Reason) bool {
	for _, f := range e.Fields {
		if f.Reason == reason {
			return true
		}
	}
	return false
}

// Authorizer authorizes a card for an amount.
type Authorizer interface {
	Authorize(ctx context.Context, card Card, amount decimal.Decimal) (*Receipt, error)
}
