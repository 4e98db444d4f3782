// Package order holds the order aggregate, checkout flow and the status
// transition controller.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/payment"
)

// Order is a paid customer order moving through fulfillment.
type Order struct {
	ID              string
	CustomerID      string
	Items           []Item
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	CouponCode      string
	Status          Status
	DeliveryAddress string
	Phone           string
	Notes           string
	Receipt         *payment.Receipt
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is an immutable order line with name and price snapshots.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	From      Status
	To        Status
	ActorRole auth.Role
	ActorID   string
	ChangedAt time.Time
}

// Repository persists orders. Implementations must create an order and its
// items atomically and apply UpdateStatus as a compare-and-set on
// change.From.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// ListByCustomer returns the customer's orders, newest first.
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus sets the status to change.To and UpdatedAt to
	// change.ChangedAt when the stored status still equals change.From.
	// It returns ErrNotFound or ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id string, change StatusChange) (*Order, error)
	// History returns the status changes of an order, oldest first.
	History(ctx context.Context, id string) ([]StatusChange, error)
}
