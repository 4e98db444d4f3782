package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/ttlstore"
	"github.com/xenking/kart-orders/internal/wire"
)

// IdempotencyHeader names the optional header that deduplicates order
// placement retries.
const IdempotencyHeader = "Idempotency-Key"

const (
	keyPending     = "pending"
	keyOrderPrefix = "order:"
	maxKeyLen      = 128
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeProducts(e, products) })
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	req, err := readBody(r, wire.DecodeQuoteRequest)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	q, err := h.orders.Quote(r.Context(), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeQuote(e, q) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.ActorFrom(ctx)

	var (
		orders []order.Order
		err    error
	)
	switch scope := r.URL.Query().Get("scope"); scope {
	case "operator":
		if !actor.IsOperator() {
			writeError(ctx, w, errForbidden)
			return
		}
		orders, err = h.orders.AllOrders(ctx)
	case "", "customer":
		orders, err = h.orders.OrdersForCustomer(ctx, actor.ID)
	default:
		writeError(ctx, w, &order.ValidationError{Field: "scope", Message: "must be customer or operator"})
		return
	}
	if err != nil {
		writeError(ctx, w, errors.Wrap(err, "list orders"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrders(e, orders) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	o, err := h.orders.Get(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	changes, err := h.orders.History(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeHistory(e, changes) })
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	target, err := readBody(r, wire.DecodeTransition)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	actor, _ := auth.ActorFrom(ctx)
	o, err := h.transitions.Transition(ctx, chi.URLParam(r, "orderID"), target, actor)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.ActorFrom(ctx)

	body, err := readBody(r, wire.DecodePlaceOrder)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" {
		o, err := h.orders.PlaceOrder(ctx, body.Request(actor.ID))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
		return
	}
	if len(key) > maxKeyLen {
		writeError(ctx, w, &order.ValidationError{Field: IdempotencyHeader, Message: "key is too long"})
		return
	}

	// Keys are scoped to the actor so customers cannot probe each other. The
	// reservation is short-lived until the order id is recorded.
	storeKey := actor.ID + "/" + key
	acquired, err := h.keys.PutIfAbsent(ctx, storeKey, []byte(keyPending), h.pendingTTL)
	if err != nil {
		writeError(ctx, w, errors.Wrap(err, "reserve idempotency key"))
		return
	}
	if !acquired {
		h.replay(ctx, w, actor, storeKey)
		return
	}

	o, err := h.orders.PlaceOrder(ctx, body.Request(actor.ID))
	if err != nil {
		if expErr := h.keys.Expire(ctx, storeKey); expErr != nil {
			zctx.From(ctx).Warn("Release idempotency key", zap.Error(expErr))
		}
		writeError(ctx, w, err)
		return
	}
	if err := h.keys.Put(ctx, storeKey, []byte(keyOrderPrefix+o.ID), h.keyTTL); err != nil {
		zctx.From(ctx).Warn("Record idempotency key", zap.Error(err), zap.String("order_id", o.ID))
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}

// replay answers a repeated Idempotency-Key: 409 while the first request is
// in flight, otherwise the order it created.
func (h *Handler) replay(ctx context.Context, w http.ResponseWriter, actor auth.Actor, storeKey string) {
	value, err := h.keys.Get(ctx, storeKey)
	switch {
	case errors.Is(err, ttlstore.ErrNotFound):
		writeAPIError(w, &wire.Error{Code: http.StatusConflict, Message: "request with this idempotency key failed, retry"})
		return
	case err != nil:
		writeError(ctx, w, errors.Wrap(err, "read idempotency key"))
		return
	}

	id, ok := strings.CutPrefix(string(value), keyOrderPrefix)
	if !ok {
		writeAPIError(w, &wire.Error{Code: http.StatusConflict, Message: "request with this idempotency key is in progress"})
		return
	}
	o, err := h.orders.Get(ctx, actor, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, o) })
}
