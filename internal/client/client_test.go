package client_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-orders/internal/client"
	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/payment"
	"github.com/xenking/kart-orders/internal/domain/product"
	"github.com/xenking/kart-orders/internal/handler"
	"github.com/xenking/kart-orders/internal/storage/memory"
	"github.com/xenking/kart-orders/internal/ttlstore"
	"github.com/xenking/kart-orders/internal/wire"
)

var (
	pepper = []byte("pepper")
	secret = []byte("secret")
)

func newAPI(t *testing.T) string {
	t.Helper()

	products := memory.NewProductStore([]product.Product{
		{ID: "1", Name: "Waffle", Price: decimal.NewFromInt(50), Available: true},
		{ID: "2", Name: "Creme Brulee", Price: decimal.NewFromInt(60), Available: true},
		{ID: "3", Name: "Tiramisu", Price: decimal.NewFromInt(70), Available: true},
	})
	coupons := memory.NewCouponStore(coupon.Coupon{
		Code:        "TRIO",
		Kind:        coupon.KindBuyNPayM,
		MinQuantity: 3,
	})
	keys := memory.NewAPIKeyStore()
	keys.Add(auth.APIKeyInfo{ID: "console", KeyHash: auth.HashAPIKey("op-key", pepper)})

	orders := memory.NewOrderStore()
	svc := order.NewService(products, coupon.NewCatalog(coupons), payment.NewSimulator(), orders)
	h := handler.NewHandler(handler.Config{}, products, svc, order.NewController(orders), ttlstore.NewMemory())
	sec := handler.NewSecurityHandler(keys, pepper, secret)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(sec.Middleware)
		h.Routes(r)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func customer(t *testing.T, base, id string) *client.Client {
	t.Helper()
	token, err := auth.IssueToken(secret, auth.Actor{ID: id, Role: auth.RoleCustomer}, time.Hour, time.Now())
	require.NoError(t, err)
	c, err := client.New(base, client.WithBearerToken(token))
	require.NoError(t, err)
	return c
}

func checkout() wire.PlaceOrder {
	return wire.PlaceOrder{
		Lines: []order.LineRequest{
			{ProductID: "1", Quantity: 1},
			{ProductID: "2", Quantity: 1},
			{ProductID: "3", Quantity: 1},
		},
		CouponCode: "TRIO",
		Address:    "1 Market Square",
		Phone:      "555-0100",
		Card:       payment.Card{Number: "4111111111111111", Holder: "Grace Hopper", Expiry: "01/49", CVV: "999"},
	}
}

func TestClient_EndToEnd(t *testing.T) {
	base := newAPI(t)
	ctx := t.Context()
	alice := customer(t, base, "alice")
	operator, err := client.New(base, client.WithAPIKey("op-key"))
	require.NoError(t, err)

	products, err := alice.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.True(t, products[0].Price.Equal(decimal.NewFromInt(50)))

	quote, err := alice.Quote(ctx, order.QuoteRequest{Lines: checkout().Lines, CouponCode: "trio"})
	require.NoError(t, err)
	assert.True(t, quote.Totals.Subtotal.Equal(decimal.NewFromInt(180)))
	assert.True(t, quote.Totals.Discount.Equal(decimal.NewFromInt(50)))
	assert.True(t, quote.Totals.Total.Equal(decimal.NewFromInt(130)))
	assert.Equal(t, "TRIO", quote.CouponCode)
	assert.Len(t, quote.Lines, 3)

	placed, err := alice.PlaceOrder(ctx, checkout(), "k1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, placed.Status)
	assert.True(t, placed.Total.Equal(decimal.NewFromInt(130)))

	again, err := alice.PlaceOrder(ctx, checkout(), "k1")
	require.NoError(t, err)
	assert.Equal(t, placed.ID, again.ID)

	mine, err := alice.ListOrders(ctx, client.ScopeCustomer)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = alice.ListOrders(ctx, client.ScopeOperator)
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))

	approved, err := operator.Transition(ctx, placed.ID, order.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, order.StatusApproved, approved.Status)

	_, err = alice.Transition(ctx, placed.ID, order.StatusCancelled)
	assert.True(t, client.IsStatus(err, http.StatusConflict))

	got, err := alice.Order(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusApproved, got.Status)

	history, err := operator.History(ctx, placed.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, order.StatusApproved, history[0].To)

	_, err = customer(t, base, "bob").Order(ctx, placed.ID)
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
}

func TestClient_Errors(t *testing.T) {
	base := newAPI(t)
	alice := customer(t, base, "alice")

	req := checkout()
	req.Card.Expiry = "01/20"
	_, err := alice.PlaceOrder(t.Context(), req, "")
	var apiErr *wire.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Code)
	require.Len(t, apiErr.Reasons, 1)
	assert.Equal(t, string(payment.ReasonCardExpired), apiErr.Reasons[0].Reason)

	anon, err := client.New(base)
	require.NoError(t, err)
	_, err = anon.ListOrders(t.Context(), client.ScopeCustomer)
	assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := client.New(srv.URL)
	require.NoError(t, err)
	_, err = c.ListOrders(t.Context(), client.ScopeCustomer)
	var apiErr *wire.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Code)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := client.New("/api")
	require.Error(t, err)
}
