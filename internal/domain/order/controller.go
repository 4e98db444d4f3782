package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-orders/internal/domain/auth"
)

// Controller applies status transitions on behalf of actors.
type Controller struct {
	orders  Repository
	now     func() time.Time
	tracer  trace.Tracer
	metrics instruments
}

// NewController creates a Controller backed by the order store.
func NewController(orders Repository, opts ...Option) *Controller {
	o := buildOptions(opts)
	return &Controller{
		orders:  orders,
		now:     o.now,
		tracer:  o.tp.Tracer(instrumentationName),
		metrics: newInstruments(o.mp),
	}
}

// Transition moves order id to target. Operators may take any legal edge;
// customers may only cancel their own PENDING orders. A rejected transition
// leaves the order untouched and returns *InvalidTransitionError, ErrNotFound
// or ErrConflict.
func (c *Controller) Transition(ctx context.Context, id string, target Status, actor auth.Actor) (_ *Order, rerr error) {
	ctx, span := c.tracer.Start(ctx, "order.Transition", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target", target.String()),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer func() {
		outcome := "ok"
		switch {
		case rerr == nil:
		case errors.Is(rerr, ErrInvalidTransition):
			outcome = "rejected"
		case errors.Is(rerr, ErrConflict):
			outcome = "conflict"
		case errors.Is(rerr, ErrNotFound):
			outcome = "not_found"
		default:
			outcome = "error"
		}
		c.metrics.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("target", target.String()),
			attribute.String("outcome", outcome),
		))
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if !target.Valid() {
		return nil, invalid("targetStatus", "unknown status")
	}

	o, err := c.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsOperator() && o.CustomerID != actor.ID {
		return nil, ErrNotFound
	}

	if !o.Status.CanTransitionTo(target) {
		reason := "transition is not allowed"
		if o.Status.IsTerminal() {
			reason = "order is already " + o.Status.String()
		}
		return nil, &InvalidTransitionError{From: o.Status, To: target, Reason: reason}
	}
	if !permitted(o.Status, target, actor.Role) {
		return nil, &InvalidTransitionError{
			From:   o.Status,
			To:     target,
			Reason: string(actor.Role) + " may not perform this transition",
		}
	}
	if o.Receipt == nil {
		return nil, &InvalidTransitionError{From: o.Status, To: target, Reason: "order has no payment receipt"}
	}

	return c.orders.UpdateStatus(ctx, id, StatusChange{
		From:      o.Status,
		To:        target,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
		ChangedAt: c.now().UTC(),
	})
}
