package poller

import (
	"context"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/client"
	"github.com/xenking/kart-orders/internal/domain/order"
)

// OrderSource lists orders of a scope, newest first. *client.Client
// implements it.
type OrderSource interface {
	ListOrders(ctx context.Context, scope client.Scope) ([]order.Order, error)
}

// Transitioner changes order status. *client.Client implements it.
type Transitioner interface {
	Transition(ctx context.Context, id string, target order.Status) (*order.Order, error)
}

// View is a polled projection of orders.
type View struct {
	*Poller[[]order.Order]
}

func newView(name string, src OrderSource, scope client.Scope, opts []Option) View {
	return View{New(name, func(ctx context.Context) ([]order.Order, error) {
		return src.ListOrders(ctx, scope)
	}, opts...)}
}

// Orders returns a copy of the current projection.
func (v View) Orders() []order.Order {
	orders, _, _ := v.Current()
	return slices.Clone(orders)
}

// Find returns the order with id from the current projection.
func (v View) Find(id string) (order.Order, bool) {
	orders, _, _ := v.Current()
	i := slices.IndexFunc(orders, func(o order.Order) bool { return o.ID == id })
	if i < 0 {
		return order.Order{}, false
	}
	return orders[i], true
}

// CustomerView tracks the signed-in customer's orders.
type CustomerView struct {
	View
}

// NewCustomerView creates a view over the customer projection.
func NewCustomerView(src OrderSource, opts ...Option) *CustomerView {
	return &CustomerView{newView("customer-orders", src, client.ScopeCustomer, opts)}
}

// OperatorView tracks every order for the fulfillment console.
type OperatorView struct {
	View
	tr Transitioner
}

// NewOperatorView creates a view over the operator projection. tr performs
// transitions on behalf of the operator.
func NewOperatorView(src OrderSource, tr Transitioner, opts ...Option) *OperatorView {
	return &OperatorView{View: newView("operator-orders", src, client.ScopeOperator, opts), tr: tr}
}

// Transition moves an order and reloads the projection right away so the
// operator sees the effect without waiting for the next tick. A lost race
// also reloads, since the local view is known to be stale. The reload never
// joins a scheduled fetch that started before the transition.
func (v *OperatorView) Transition(ctx context.Context, id string, target order.Status) (*order.Order, error) {
	o, err := v.tr.Transition(ctx, id, target)
	if err != nil && !client.IsStatus(err, http.StatusConflict) {
		return nil, err
	}
	if _, rerr := v.Reload(ctx); rerr != nil {
		v.cfg.lg.Warn("Reload after transition failed", zap.String("order_id", id), zap.Error(rerr))
	}
	return o, err
}
