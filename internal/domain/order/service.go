package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/cart"
	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/domain/payment"
	"github.com/xenking/kart-orders/internal/domain/pricing"
	"github.com/xenking/kart-orders/internal/domain/product"
)

// CouponLookup resolves coupon codes. Unknown or malformed codes resolve to
// (nil, false, nil).
type CouponLookup interface {
	Lookup(ctx context.Context, code string) (*coupon.Coupon, bool, error)
}

// LineRequest is a requested cart line. Prices always come from the catalog.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// QuoteRequest holds the input for pricing a cart.
type QuoteRequest struct {
	Lines      []LineRequest
	CouponCode string
}

// Quote is a priced cart.
type Quote struct {
	Lines  []cart.Line
	Totals pricing.Totals
	// CouponCode is the normalized code when the coupon produced a discount.
	CouponCode string
}

// PlaceOrderRequest holds the full checkout input.
type PlaceOrderRequest struct {
	CustomerID      string
	Lines           []LineRequest
	CouponCode      string
	DeliveryAddress string
	Phone           string
	Notes           string
	Card            payment.Card
}

// CreateParams holds an already priced and paid order.
type CreateParams struct {
	CustomerID string
	Lines      []cart.Line
	Totals     pricing.Totals
	CouponCode string
	Delivery   Delivery
	Receipt    *payment.Receipt
}

// Service implements checkout and order queries.
type Service struct {
	products product.Repository
	coupons  CouponLookup
	payments payment.Authorizer
	orders   Repository

	now     func() time.Time
	newID   func() string
	tracer  trace.Tracer
	metrics instruments
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons CouponLookup,
	payments payment.Authorizer,
	orders Repository,
	opts ...Option,
) *Service {
	o := buildOptions(opts)
	return &Service{
		products: products,
		coupons:  coupons,
		payments: payments,
		orders:   orders,
		now:      o.now,
		newID:    o.newID,
		tracer:   o.tp.Tracer(instrumentationName),
		metrics:  newInstruments(o.mp),
	}
}

// Quote prices the requested lines against the catalog. It has no side
// effects.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := validateLines(req.Lines); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.Lines))
	seen := make(map[string]struct{}, len(req.Lines))
	for _, l := range req.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	c := cart.New()
	for i, l := range req.Lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, invalid(lineField(i, "productId"), "product %s not found", l.ProductID)
		}
		if !p.Available {
			return nil, invalid(lineField(i, "productId"), "product %s is unavailable", l.ProductID)
		}
		if err := c.Add(p.ID, p.Name, p.Price, l.Quantity); err != nil {
			return nil, invalid(lineField(i, "quantity"), "%s", err.Error())
		}
	}

	cp, _, err := s.coupons.Lookup(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}

	lines := c.Lines()
	totals := pricing.Price(lines, cp)
	q := &Quote{Lines: lines, Totals: totals}
	if totals.CouponApplied {
		q.CouponCode = cp.Code
	}
	return q, nil
}

// PlaceOrder validates the checkout, prices the cart, authorizes the total
// and persists the order. A declined payment returns *payment.DeclinedError
// and nothing is written.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Lines))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if req.CustomerID == "" {
		return nil, invalid("customerId", "customer id is required")
	}
	delivery, err := ValidateDelivery(req.DeliveryAddress, req.Phone, req.Notes)
	if err != nil {
		return nil, err
	}

	q, err := s.Quote(ctx, QuoteRequest{Lines: req.Lines, CouponCode: req.CouponCode})
	if err != nil {
		return nil, err
	}

	receipt, err := s.payments.Authorize(ctx, req.Card, q.Totals.Total)
	if err != nil {
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			s.metrics.declined.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", string(declined.Reason())),
			))
			return nil, err
		}
		return nil, errors.Wrap(err, "authorize payment")
	}

	return s.CreateOrder(ctx, CreateParams{
		CustomerID: req.CustomerID,
		Lines:      q.Lines,
		Totals:     q.Totals,
		CouponCode: q.CouponCode,
		Delivery:   delivery,
		Receipt:    receipt,
	})
}

// CreateOrder persists a priced and paid order in PENDING. Orders without
// items or without a receipt are rejected before any write.
func (s *Service) CreateOrder(ctx context.Context, p CreateParams) (*Order, error) {
	if p.CustomerID == "" {
		return nil, invalid("customerId", "customer id is required")
	}
	if len(p.Lines) == 0 {
		return nil, invalid("lines", "at least one line is required")
	}
	if p.Receipt == nil {
		return nil, invalid("receipt", "payment receipt is required")
	}

	expected := p.Totals.Subtotal.Sub(p.Totals.Discount)
	if expected.IsNegative() {
		expected = decimal.Zero
	}
	if !p.Totals.Total.Equal(expected) {
		return nil, invalid("total", "total %s does not match subtotal minus discount", p.Totals.Total)
	}
	if !p.Receipt.Amount.Equal(p.Totals.Total) {
		return nil, invalid("receipt", "authorized amount %s does not match total %s", p.Receipt.Amount, p.Totals.Total)
	}

	items := make([]Item, len(p.Lines))
	for i, l := range p.Lines {
		if l.Quantity < 1 {
			return nil, invalid(lineField(i, "quantity"), "quantity must be positive")
		}
		items[i] = Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}

	now := s.now().UTC()
	o := &Order{
		ID:              s.newID(),
		CustomerID:      p.CustomerID,
		Items:           items,
		Subtotal:        p.Totals.Subtotal,
		Discount:        p.Totals.Discount,
		Total:           p.Totals.Total,
		CouponCode:      p.CouponCode,
		Status:          StatusPending,
		DeliveryAddress: p.Delivery.Address,
		Phone:           p.Delivery.Phone,
		Notes:           p.Delivery.Notes,
		Receipt:         p.Receipt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.metrics.created.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("coupon", o.CouponCode != ""),
	))
	return o, nil
}

// Get returns an order visible to the actor. Customers only see their own
// orders; anything else is ErrNotFound.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsOperator() && o.CustomerID != actor.ID {
		return nil, ErrNotFound
	}
	return o, nil
}

// History returns the status history of an order visible to the actor.
func (s *Service) History(ctx context.Context, actor auth.Actor, id string) ([]StatusChange, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.orders.History(ctx, id)
}

// OrdersForCustomer returns the customer's orders, newest first.
func (s *Service) OrdersForCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

// AllOrders returns every order, newest first.
func (s *Service) AllOrders(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}
