package wire

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/payment"
)

func sampleOrder() order.Order {
	at := time.Date(2026, 10, 18, 14, 5, 6, 789000000, time.UTC)
	return order.Order{
		ID:         "o-1",
		CustomerID: "c-1",
		Items: []order.Item{
			{ProductID: "1", Name: "Waffle with Berries", UnitPrice: decimal.RequireFromString("6.5"), Quantity: 2},
		},
		Subtotal:        decimal.RequireFromString("13"),
		Discount:        decimal.RequireFromString("1.3"),
		Total:           decimal.RequireFromString("11.7"),
		CouponCode:      "TENOFF",
		Status:          order.StatusInCourier,
		DeliveryAddress: "1 Market Square",
		Phone:           "5550101",
		Receipt: &payment.Receipt{
			TransactionID:     "01JTX",
			AuthorizationCode: "K4Q9ZP",
			IssuerName:        "Visa",
			Amount:            decimal.RequireFromString("11.7"),
			Method:            payment.MethodCard,
		},
		CreatedAt: at,
		UpdatedAt: at.Add(time.Minute),
	}
}

func TestOrderEncoding(t *testing.T) {
	o := sampleOrder()

	var e jx.Encoder
	EncodeOrder(&e, &o)
	body := e.String()

	assert.Contains(t, body, `"status":2`)
	assert.Contains(t, body, `"statusName":"IN_COURIER"`)
	assert.Contains(t, body, `"total":11.70`)
	assert.Contains(t, body, `"unitPrice":6.50`)
	assert.Contains(t, body, `"createdAt":"2026-10-18T14:05:06.789Z"`)
	assert.NotContains(t, body, `"notes"`)

	got, err := DecodeOrder(jx.DecodeStr(body))
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.Status, got.Status)
	assert.True(t, o.Total.Equal(got.Total))
	assert.True(t, o.Items[0].UnitPrice.Equal(got.Items[0].UnitPrice))
	assert.Equal(t, o.Receipt.AuthorizationCode, got.Receipt.AuthorizationCode)
	assert.Equal(t, o.UpdatedAt, got.UpdatedAt)
}

func TestDecodeOrders(t *testing.T) {
	orders := []order.Order{sampleOrder(), sampleOrder()}
	orders[1].ID = "o-2"
	orders[1].Status = order.StatusCancelled

	var e jx.Encoder
	EncodeOrders(&e, orders)

	got, err := DecodeOrders(jx.DecodeBytes(e.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, order.StatusCancelled, got[1].Status)

	empty, err := DecodeOrders(jx.DecodeStr(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = DecodeOrders(jx.DecodeStr(`[{"id":"x","status":7}]`))
	require.ErrorIs(t, err, order.ErrUnknownStatus)
}

func TestHistoryEncoding(t *testing.T) {
	changes := []order.StatusChange{{
		From:      order.StatusPending,
		To:        order.StatusCancelled,
		ActorRole: auth.RoleCustomer,
		ActorID:   "c-1",
		ChangedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}}
	var e jx.Encoder
	EncodeHistory(&e, changes)
	assert.Contains(t, e.String(), `"to":-1`)

	got, err := DecodeHistory(jx.DecodeBytes(e.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, changes, got)
}

func TestDecodePlaceOrder(t *testing.T) {
	body := `{
		"items": [{"productId": "1", "quantity": 2}, {"productId": "4", "quantity": 1, "price": 999}],
		"couponCode": null,
		"address": "1 Market Square",
		"phone": "5550101",
		"card": {"number": "4242424242424242", "holder": "A Customer", "expiry": "12/30", "cvv": "123"},
		"extra": {"ignored": true}
	}`
	p, err := DecodePlaceOrder(jx.DecodeStr(body))
	require.NoError(t, err)
	assert.Equal(t, []order.LineRequest{{ProductID: "1", Quantity: 2}, {ProductID: "4", Quantity: 1}}, p.Lines)
	assert.Empty(t, p.CouponCode)
	assert.Equal(t, "12/30", p.Card.Expiry)

	req := p.Request("c-1")
	assert.Equal(t, "c-1", req.CustomerID)
	assert.Equal(t, "1 Market Square", req.DeliveryAddress)

	var e jx.Encoder
	p.Encode(&e)
	again, err := DecodePlaceOrder(jx.DecodeBytes(e.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, p, again)

	_, err = DecodePlaceOrder(jx.DecodeStr(`{"lines": [{"productId": 1}]}`))
	require.Error(t, err)
}

func TestDecodeTransition(t *testing.T) {
	tests := []struct {
		body    string
		want    order.Status
		wantErr bool
	}{
		{body: `{"targetStatus": 1}`, want: order.StatusApproved},
		{body: `{"targetStatus": -1}`, want: order.StatusCancelled},
		{body: `{"targetStatus": "IN_COURIER"}`, want: order.StatusInCourier},
		{body: `{"targetStatus": 9}`, wantErr: true},
		{body: `{"targetStatus": "LOST"}`, wantErr: true},
		{body: `{}`, wantErr: true},
		{body: `[]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := DecodeTransition(jx.DecodeStr(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var e jx.Encoder
	EncodeTransition(&e, order.StatusCompleted)
	assert.Equal(t, `{"targetStatus":3}`, e.String())
}

func TestErrorEncoding(t *testing.T) {
	in := &Error{
		Code:    402,
		Message: "payment declined",
		Reasons: []ErrorReason{{Field: "number", Reason: "invalid_card_number", Message: "card number failed checksum"}},
	}
	var e jx.Encoder
	in.Encode(&e)

	out, err := DecodeError(jx.DecodeBytes(e.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Contains(t, out.Error(), "402")
}
