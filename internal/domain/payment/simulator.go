package payment

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const authCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var _ Authorizer = (*Simulator)(nil)

// Simulator authorizes cards without contacting a card network: it validates
// every field and synthesises a receipt.
type Simulator struct {
	bins     BINTable
	now      func() time.Time
	newTxID  func() string
	authCode func() string
}

// SimulatorOption customises a Simulator.
type SimulatorOption func(*Simulator)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

// WithBINTable overrides the issuer lookup table.
func WithBINTable(t BINTable) SimulatorOption {
	return func(s *Simulator) { s.bins = t }
}

// NewSimulator returns a Simulator using DefaultBINTable and the wall clock.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		bins:     DefaultBINTable(),
		now:      time.Now,
		newTxID:  func() string { return ulid.Make().String() },
		authCode: randomAuthCode,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Authorize validates the card and amount. Validation failures return a
// *DeclinedError listing every failing field; nothing is retried.
func (s *Simulator) Authorize(_ context.Context, card Card, amount decimal.Decimal) (*Receipt, error) {
	failures := validateCard(card, s.now())
	if amount.IsNegative() {
		failures = append(failures, FieldError{
			Field:   "amount",
			Reason:  ReasonInvalidAmount,
			Message: "amount must not be negative",
		})
	}
	if len(failures) > 0 {
		return nil, &DeclinedError{Fields: failures}
	}

	return &Receipt{
		TransactionID:     s.newTxID(),
		AuthorizationCode: s.authCode(),
		IssuerName:        s.bins.Issuer(NormalizeNumber(card.Number)),
		Amount:            amount,
		Method:            MethodCard,
	}, nil
}

func randomAuthCode() string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	for i, b := range buf {
		buf[i] = authCodeAlphabet[int(b)%len(authCodeAlphabet)]
	}
	return string(buf[:])
}
