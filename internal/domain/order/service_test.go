package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/cart"
	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/domain/payment"
	"github.com/xenking/kart-orders/internal/domain/pricing"
	"github.com/xenking/kart-orders/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) List(context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCoupons struct {
	byCode map[string]*coupon.Coupon
	err    error
}

func (m *mockCoupons) Lookup(_ context.Context, code string) (*coupon.Coupon, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	c, ok := m.byCode[code]
	return c, ok, nil
}

type mockAuthorizer struct {
	calls   int
	amount  decimal.Decimal
	receipt *payment.Receipt
	err     error
}

func (m *mockAuthorizer) Authorize(_ context.Context, _ payment.Card, amount decimal.Decimal) (*payment.Receipt, error) {
	m.calls++
	m.amount = amount
	if m.err != nil {
		return nil, m.err
	}
	r := *m.receipt
	r.Amount = amount
	return &r, nil
}

type mockOrderRepo struct {
	created []*Order
	byID    map[string]*Order
	history map[string][]StatusChange
	err     error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: map[string]*Order{}, history: map[string][]StatusChange{}}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, o)
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	var out []Order
	for _, o := range m.created {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListAll(context.Context) ([]Order, error) {
	out := make([]Order, len(m.created))
	for i, o := range m.created {
		out[i] = *o
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, change StatusChange) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != change.From {
		return nil, ErrConflict
	}
	o.Status = change.To
	o.UpdatedAt = change.ChangedAt
	m.history[id] = append(m.history[id], change)
	return o, nil
}

func (m *mockOrderRepo) History(_ context.Context, id string) ([]StatusChange, error) {
	return m.history[id], nil
}

// --- Helpers ---

var testNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	products *mockProductRepo
	coupons  *mockCoupons
	payments *mockAuthorizer
	orders   *mockOrderRepo
}

func newFixture() *fixture {
	f := &fixture{
		products: &mockProductRepo{byID: map[string]product.Product{
			"waffle":   {ID: "waffle", Name: "Waffle", Price: decimal.RequireFromString("50"), Available: true},
			"creme":    {ID: "creme", Name: "Creme Brulee", Price: decimal.RequireFromString("60"), Available: true},
			"tiramisu": {ID: "tiramisu", Name: "Tiramisu", Price: decimal.RequireFromString("70"), Available: true},
			"sold-out": {ID: "sold-out", Name: "Baklava", Price: decimal.RequireFromString("4"), Available: false},
		}},
		coupons: &mockCoupons{byCode: map[string]*coupon.Coupon{
			"TRIO":   {Code: "TRIO", Kind: coupon.KindBuyNPayM, Value: decimal.NewFromInt(2), MinQuantity: 3},
			"TENOFF": {Code: "TENOFF", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(10)},
		}},
		payments: &mockAuthorizer{receipt: &payment.Receipt{
			TransactionID:     "01JTX",
			AuthorizationCode: "A1B2C3",
			IssuerName:        "Visa",
			Method:            payment.MethodCard,
		}},
		orders: newMockOrderRepo(),
	}
	f.svc = NewService(f.products, f.coupons, f.payments, f.orders,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return "order-1" }),
	)
	return f
}

func validRequest() PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerID: "cust-1",
		Lines: []LineRequest{
			{ProductID: "waffle", Quantity: 1},
			{ProductID: "creme", Quantity: 1},
			{ProductID: "tiramisu", Quantity: 1},
		},
		DeliveryAddress: "1 Market Square",
		Phone:           "+1 555 010 9999",
		Card:            payment.Card{Number: "4242 4242 4242 4242", Holder: "A Customer", Expiry: "12/30", CVV: "123"},
	}
}

// --- Tests ---

func TestService_Quote(t *testing.T) {
	tests := []struct {
		name         string
		req          QuoteRequest
		wantSubtotal string
		wantDiscount string
		wantTotal    string
		wantCoupon   string
	}{
		{
			name:         "no coupon",
			req:          QuoteRequest{Lines: []LineRequest{{ProductID: "waffle", Quantity: 2}}},
			wantSubtotal: "100", wantDiscount: "0", wantTotal: "100",
		},
		{
			name: "buy three pay two",
			req: QuoteRequest{
				Lines:      []LineRequest{{ProductID: "waffle", Quantity: 1}, {ProductID: "creme", Quantity: 1}, {ProductID: "tiramisu", Quantity: 1}},
				CouponCode: "TRIO",
			},
			wantSubtotal: "180", wantDiscount: "50", wantTotal: "130", wantCoupon: "TRIO",
		},
		{
			name: "coupon not met",
			req: QuoteRequest{
				Lines:      []LineRequest{{ProductID: "waffle", Quantity: 1}, {ProductID: "creme", Quantity: 1}},
				CouponCode: "TRIO",
			},
			wantSubtotal: "110", wantDiscount: "0", wantTotal: "110",
		},
		{
			name:         "unknown coupon ignored",
			req:          QuoteRequest{Lines: []LineRequest{{ProductID: "creme", Quantity: 1}}, CouponCode: "NOPE"},
			wantSubtotal: "60", wantDiscount: "0", wantTotal: "60",
		},
		{
			name:         "repeated product merges",
			req:          QuoteRequest{Lines: []LineRequest{{ProductID: "creme", Quantity: 1}, {ProductID: "creme", Quantity: 2}}, CouponCode: "TENOFF"},
			wantSubtotal: "180", wantDiscount: "18", wantTotal: "162", wantCoupon: "TENOFF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			q, err := f.svc.Quote(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubtotal, q.Totals.Subtotal.String())
			assert.Equal(t, tt.wantDiscount, q.Totals.Discount.String())
			assert.Equal(t, tt.wantTotal, q.Totals.Total.String())
			assert.Equal(t, tt.wantCoupon, q.CouponCode)
		})
	}
}

func TestService_QuoteErrors(t *testing.T) {
	t.Run("unknown product", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Quote(context.Background(), QuoteRequest{Lines: []LineRequest{{ProductID: "waffle", Quantity: 1}, {ProductID: "ghost", Quantity: 1}}})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "lines[1].productId", verr.Field)
	})
	t.Run("unavailable product", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Quote(context.Background(), QuoteRequest{Lines: []LineRequest{{ProductID: "sold-out", Quantity: 1}}})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Message, "unavailable")
	})
	t.Run("catalog failure", func(t *testing.T) {
		f := newFixture()
		f.products.getErr = errors.New("connection refused")
		_, err := f.svc.Quote(context.Background(), QuoteRequest{Lines: []LineRequest{{ProductID: "waffle", Quantity: 1}}})
		require.Error(t, err)
		var verr *ValidationError
		assert.False(t, errors.As(err, &verr))
	})
	t.Run("coupon store failure", func(t *testing.T) {
		f := newFixture()
		f.coupons.err = errors.New("timeout")
		_, err := f.svc.Quote(context.Background(), QuoteRequest{Lines: []LineRequest{{ProductID: "waffle", Quantity: 1}}, CouponCode: "TRIO"})
		require.Error(t, err)
	})
}

func TestService_PlaceOrder(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.CouponCode = "TRIO"
	req.Notes = "<b>gate</b> code 1234"

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, "cust-1", o.CustomerID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "TRIO", o.CouponCode)
	assert.Equal(t, "130", o.Total.String())
	assert.Equal(t, "gate code 1234", o.Notes)
	assert.Equal(t, testNow, o.CreatedAt)
	assert.Equal(t, testNow, o.UpdatedAt)
	require.Len(t, o.Items, 3)
	assert.Equal(t, "Waffle", o.Items[0].Name)

	require.NotNil(t, o.Receipt)
	assert.Equal(t, "01JTX", o.Receipt.TransactionID)
	assert.True(t, f.payments.amount.Equal(decimal.NewFromInt(130)), "authorized %s", f.payments.amount)
	require.Len(t, f.orders.created, 1)
}

func TestService_PlaceOrderRejected(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*PlaceOrderRequest)
		declined   error
		wantField  string
		wantAuthed bool
	}{
		{
			name:      "bad phone",
			mutate:    func(r *PlaceOrderRequest) { r.Phone = "call me" },
			wantField: "phone",
		},
		{
			name:      "no lines",
			mutate:    func(r *PlaceOrderRequest) { r.Lines = nil },
			wantField: "lines",
		},
		{
			name:      "no customer",
			mutate:    func(r *PlaceOrderRequest) { r.CustomerID = "" },
			wantField: "customerId",
		},
		{
			name:   "declined",
			mutate: func(*PlaceOrderRequest) {},
			declined: &payment.DeclinedError{Fields: []payment.FieldError{
				{Field: "number", Reason: payment.ReasonInvalidCardNumber, Message: "card number failed checksum"},
			}},
			wantAuthed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.payments.err = tt.declined
			req := validRequest()
			tt.mutate(&req)

			o, err := f.svc.PlaceOrder(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, o)

			if tt.wantField != "" {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantField, verr.Field)
			}
			if tt.declined != nil {
				require.ErrorIs(t, err, payment.ErrDeclined)
			}
			assert.Equal(t, tt.wantAuthed, f.payments.calls > 0)
			assert.Empty(t, f.orders.created, "no order may be written")
		})
	}
}

func TestService_CreateOrderRequiresReceiptAndItems(t *testing.T) {
	lines := []cart.Line{{ProductID: "waffle", Name: "Waffle", UnitPrice: decimal.NewFromInt(50), Quantity: 1}}
	totals := pricing.Price(lines, nil)
	receipt := &payment.Receipt{TransactionID: "tx", Amount: totals.Total, Method: payment.MethodCard}

	tests := []struct {
		name      string
		params    CreateParams
		wantField string
	}{
		{name: "no receipt", params: CreateParams{CustomerID: "c", Lines: lines, Totals: totals}, wantField: "receipt"},
		{name: "no items", params: CreateParams{CustomerID: "c", Totals: totals, Receipt: receipt}, wantField: "lines"},
		{
			name: "amount mismatch",
			params: CreateParams{CustomerID: "c", Lines: lines, Totals: totals, Receipt: &payment.Receipt{
				TransactionID: "tx", Amount: decimal.NewFromInt(1),
			}},
			wantField: "receipt",
		},
		{
			name: "inconsistent totals",
			params: CreateParams{CustomerID: "c", Lines: lines, Receipt: receipt, Totals: pricing.Totals{
				Subtotal: decimal.NewFromInt(50), Discount: decimal.NewFromInt(5), Total: decimal.NewFromInt(50),
			}},
			wantField: "total",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.CreateOrder(context.Background(), tt.params)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Empty(t, f.orders.created)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		f := newFixture()
		f.orders.err = errors.New("disk full")
		_, err := f.svc.CreateOrder(context.Background(), CreateParams{CustomerID: "c", Lines: lines, Totals: totals, Receipt: receipt})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create order")
	})
}

func TestService_GetVisibility(t *testing.T) {
	f := newFixture()
	o, err := f.svc.PlaceOrder(context.Background(), validRequest())
	require.NoError(t, err)

	owner := auth.Actor{ID: "cust-1", Role: auth.RoleCustomer}
	stranger := auth.Actor{ID: "cust-2", Role: auth.RoleCustomer}
	operator := auth.Actor{ID: "op", Role: auth.RoleOperator}

	_, err = f.svc.Get(context.Background(), owner, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), operator, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), stranger, o.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.History(context.Background(), stranger, o.ID)
	require.ErrorIs(t, err, ErrNotFound)

	history, err := f.svc.History(context.Background(), owner, o.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	mine, err := f.svc.OrdersForCustomer(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := f.svc.OrdersForCustomer(context.Background(), "cust-2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
	all, err := f.svc.AllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
