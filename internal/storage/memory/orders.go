// Package memory provides in-process stores for dev mode and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/xenking/kart-orders/internal/domain/order"
)

var _ order.Repository = (*OrderStore)(nil)

type storedOrder struct {
	seq     uint64
	order   order.Order
	history []order.StatusChange
}

// OrderStore keeps orders in a map guarded by a mutex. Reads return copies.
type OrderStore struct {
	mu     sync.RWMutex
	seq    uint64
	orders map[string]*storedOrder
}

// NewOrderStore returns an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*storedOrder)}
}

// Create stores a new order. Creating an existing id is a conflict.
func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return order.ErrConflict
	}
	s.seq++
	s.orders[o.ID] = &storedOrder{seq: s.seq, order: cloneOrder(*o)}
	return nil
}

// Get returns a copy of the order.
func (s *OrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	so, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o := cloneOrder(so.order)
	return &o, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (s *OrderStore) ListByCustomer(_ context.Context, customerID string) ([]order.Order, error) {
	return s.list(func(o *order.Order) bool { return o.CustomerID == customerID }), nil
}

// ListAll returns every order, newest first.
func (s *OrderStore) ListAll(_ context.Context) ([]order.Order, error) {
	return s.list(func(*order.Order) bool { return true }), nil
}

func (s *OrderStore) list(keep func(*order.Order) bool) []order.Order {
	s.mu.RLock()
	matched := make([]*storedOrder, 0, len(s.orders))
	for _, so := range s.orders {
		if keep(&so.order) {
			matched = append(matched, so)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *storedOrder) int {
		if c := b.order.CreatedAt.Compare(a.order.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	out := make([]order.Order, len(matched))
	for i, so := range matched {
		out[i] = cloneOrder(so.order)
	}
	return out
}

// UpdateStatus applies the change when the current status equals
// change.From.
func (s *OrderStore) UpdateStatus(_ context.Context, id string, change order.StatusChange) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if so.order.Status != change.From {
		return nil, order.ErrConflict
	}
	so.order.Status = change.To
	so.order.UpdatedAt = change.ChangedAt
	so.history = append(so.history, change)

	o := cloneOrder(so.order)
	return &o, nil
}

// History returns the status changes of an order, oldest first.
func (s *OrderStore) History(_ context.Context, id string) ([]order.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	so, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return slices.Clone(so.history), nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	if o.Receipt != nil {
		r := *o.Receipt
		o.Receipt = &r
	}
	return o
}
