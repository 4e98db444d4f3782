// Package handler exposes the order API over HTTP.
package handler

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/product"
	"github.com/xenking/kart-orders/internal/ttlstore"
)

const (
	// DefaultIdempotencyTTL is used when Config.IdempotencyTTL is zero.
	DefaultIdempotencyTTL = 24 * time.Hour
	// DefaultPendingTTL is used when Config.PendingTTL is zero.
	DefaultPendingTTL = time.Minute
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// IdempotencyTTL bounds how long an Idempotency-Key replays its order.
	IdempotencyTTL time.Duration
	// PendingTTL bounds how long a key stays reserved by a request that
	// never recorded its order.
	PendingTTL time.Duration
}

// Handler serves the order API, delegating business logic to the order
// service and transition controller.
type Handler struct {
	products    product.Repository
	orders      *order.Service
	transitions *order.Controller
	keys        ttlstore.Store
	keyTTL      time.Duration
	pendingTTL  time.Duration
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products product.Repository,
	orders *order.Service,
	transitions *order.Controller,
	keys ttlstore.Store,
) *Handler {
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	pending := cfg.PendingTTL
	if pending <= 0 {
		pending = DefaultPendingTTL
	}
	return &Handler{
		products:    products,
		orders:      orders,
		transitions: transitions,
		keys:        keys,
		keyTTL:      ttl,
		pendingTTL:  min(pending, ttl),
	}
}

// Routes registers the API endpoints. Order endpoints require an actor
// resolved by SecurityHandler.Middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/cart/quote", h.quote)

	r.Group(func(r chi.Router) {
		r.Use(RequireActor)
		r.Get("/orders", h.listOrders)
		r.Post("/orders", h.placeOrder)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Get("/orders/{orderID}/history", h.orderHistory)
		r.Patch("/orders/{orderID}/status", h.transitionOrder)
	})
}
