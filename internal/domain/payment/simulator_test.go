package payment

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

func validCard() Card {
	return Card{
		Number: "4111 1111 1111 1111",
		Holder: "Ada Lovelace",
		Expiry: "12/99",
		CVV:    "123",
	}
}

func newTestSimulator() *Simulator {
	return NewSimulator(WithClock(func() time.Time { return fixedNow }))
}

func requireDeclined(t *testing.T, err error) *DeclinedError {
	t.Helper()
	require.ErrorIs(t, err, ErrDeclined)
	var de *DeclinedError
	require.ErrorAs(t, err, &de)
	return de
}

func TestSimulator_AuthorizeSuccess(t *testing.T) {
	s := newTestSimulator()
	amount := decimal.RequireFromString("42.50")

	r, err := s.Authorize(context.Background(), validCard(), amount)
	require.NoError(t, err)

	assert.Len(t, r.TransactionID, 26, "ULID")
	assert.Len(t, r.AuthorizationCode, 6)
	assert.Equal(t, "Visa", r.IssuerName)
	assert.True(t, amount.Equal(r.Amount))
	assert.Equal(t, MethodCard, r.Method)
}

func TestSimulator_TransactionIDsAreUnique(t *testing.T) {
	s := newTestSimulator()
	seen := make(map[string]struct{})
	for range 100 {
		r, err := s.Authorize(context.Background(), validCard(), decimal.NewFromInt(1))
		require.NoError(t, err)
		_, dup := seen[r.TransactionID]
		require.False(t, dup)
		seen[r.TransactionID] = struct{}{}
	}
}

func TestSimulator_Declines(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Card)
		reason Reason
		field  string
	}{
		{name: "luhn failure", mutate: func(c *Card) { c.Number = "4111111111111112" }, reason: ReasonInvalidCardNumber, field: "number"},
		{name: "too short", mutate: func(c *Card) { c.Number = "411111111111111" }, reason: ReasonInvalidCardNumber, field: "number"},
		{name: "luhn valid but 15 digits", mutate: func(c *Card) { c.Number = "378282246310005" }, reason: ReasonInvalidCardNumber, field: "number"},
		{name: "letters", mutate: func(c *Card) { c.Number = "4111x11111111111" }, reason: ReasonInvalidCardNumber, field: "number"},
		{name: "blank holder", mutate: func(c *Card) { c.Holder = "   " }, reason: ReasonMissingHolder, field: "holder"},
		{name: "expiry in the past", mutate: func(c *Card) { c.Expiry = "01/20" }, reason: ReasonCardExpired, field: "expiry"},
		{name: "expired last month", mutate: func(c *Card) { c.Expiry = "09/26" }, reason: ReasonCardExpired, field: "expiry"},
		{name: "month 13", mutate: func(c *Card) { c.Expiry = "13/30" }, reason: ReasonMalformedExpiry, field: "expiry"},
		{name: "month 00", mutate: func(c *Card) { c.Expiry = "00/30" }, reason: ReasonMalformedExpiry, field: "expiry"},
		{name: "single digit month", mutate: func(c *Card) { c.Expiry = "1/30" }, reason: ReasonMalformedExpiry, field: "expiry"},
		{name: "four digit year", mutate: func(c *Card) { c.Expiry = "12/2030" }, reason: ReasonMalformedExpiry, field: "expiry"},
		{name: "short cvv", mutate: func(c *Card) { c.CVV = "12" }, reason: ReasonInvalidCVV, field: "cvv"},
		{name: "long cvv", mutate: func(c *Card) { c.CVV = "12345" }, reason: ReasonInvalidCVV, field: "cvv"},
		{name: "alpha cvv", mutate: func(c *Card) { c.CVV = "12a" }, reason: ReasonInvalidCVV, field: "cvv"},
	}

	s := newTestSimulator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := validCard()
			tt.mutate(&card)

			r, err := s.Authorize(context.Background(), card, decimal.NewFromInt(10))
			assert.Nil(t, r)

			de := requireDeclined(t, err)
			require.Len(t, de.Fields, 1)
			assert.Equal(t, tt.reason, de.Reason())
			assert.Equal(t, tt.field, de.Fields[0].Field)
		})
	}
}

func TestSimulator_CurrentMonthIsStillValid(t *testing.T) {
	card := validCard()
	card.Expiry = "10/26"
	_, err := newTestSimulator().Authorize(context.Background(), card, decimal.NewFromInt(1))
	require.NoError(t, err)
}

func TestSimulator_ExpiredAndMalformedAreDistinct(t *testing.T) {
	s := newTestSimulator()

	past := validCard()
	past.Expiry = "01/20"
	_, errPast := s.Authorize(context.Background(), past, decimal.NewFromInt(1))

	bad := validCard()
	bad.Expiry = "13/30"
	_, errBad := s.Authorize(context.Background(), bad, decimal.NewFromInt(1))

	assert.NotEqual(t, requireDeclined(t, errPast).Reason(), requireDeclined(t, errBad).Reason())
}

func TestSimulator_ReportsEveryFailingField(t *testing.T) {
	card := Card{Number: "1234", Holder: "", Expiry: "xx", CVV: ""}

	_, err := newTestSimulator().Authorize(context.Background(), card, decimal.NewFromInt(-1))
	de := requireDeclined(t, err)

	for _, r := range []Reason{
		ReasonInvalidCardNumber,
		ReasonMissingHolder,
		ReasonMalformedExpiry,
		ReasonInvalidCVV,
		ReasonInvalidAmount,
	} {
		assert.True(t, de.Has(r), "missing %s", r)
	}
	assert.Contains(t, de.Error(), "number:")
	assert.True(t, errors.Is(err, ErrDeclined))
}

func TestSimulator_ZeroAmountIsAuthorized(t *testing.T) {
	r, err := newTestSimulator().Authorize(context.Background(), validCard(), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, r.Amount.IsZero())
}

func TestLuhn(t *testing.T) {
	valid := []string{"4111111111111111", "5555555555554444", "6011111111111117", "79927398713"}
	for _, n := range valid {
		assert.True(t, Luhn(n), n)
	}
	invalid := []string{"", "4111111111111112", "79927398710", "12ab"}
	for _, n := range invalid {
		assert.False(t, Luhn(n), n)
	}
}

func TestBINTable_Issuer(t *testing.T) {
	table := DefaultBINTable()
	tests := map[string]string{
		"4111111111111111": "Visa",
		"5555555555554444": "Mastercard",
		"2221000000000009": "Mastercard",
		"6011111111111117": "Discover",
		"6759649826438453": "Maestro",
		"3530111333300000": "JCB",
		"1234567812345670": UnknownIssuer,
	}
	for number, want := range tests {
		assert.Equal(t, want, table.Issuer(number), number)
	}
}
