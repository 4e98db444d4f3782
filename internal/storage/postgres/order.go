package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/payment"
)

const (
	orderColumns = `id, customer_id, status, subtotal, discount, total, coupon_code,
		delivery_address, phone, notes,
		transaction_id, authorization_code, issuer_name, paid_amount, payment_method,
		created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, position, product_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`

	listOrderItemsSQL = `SELECT order_id, product_id, name, unit_price, quantity FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, position`

	// The status predicate makes the update a compare-and-set; the row lock
	// it takes serialises concurrent transitions of one order.
	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	insertStatusLogSQL = `INSERT INTO order_status_log (order_id, from_status, to_status, actor_role, actor_id, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listStatusLogSQL = `SELECT from_status, to_status, actor_role, actor_id, changed_at
		FROM order_status_log WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if o.Receipt == nil {
		return errors.Errorf("order %q has no receipt", o.ID)
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rc := o.Receipt
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.CustomerID, int16(o.Status.Code()), o.Subtotal, o.Discount, o.Total, o.CouponCode,
			o.DeliveryAddress, o.Phone, o.Notes,
			rc.TransactionID, rc.AuthorizationCode, rc.IssuerName, rc.Amount, rc.Method,
			o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "insert order")
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(insertOrderItemSQL, o.ID, i, it.ProductID, it.Name, it.UnitPrice, it.Quantity)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert order items")
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get returns an order with its items.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	orders := []order.Order{o}
	if err := loadItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByCustomerSQL, customerID)
}

// ListAll returns every order, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if err := loadItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus applies change as a compare-and-set on change.From and logs it
// in the same transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, change order.StatusChange) (*order.Order, error) {
	var updated order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, updateOrderStatusSQL,
			id, int16(change.From.Code()), int16(change.To.Code()), change.ChangedAt,
		)
		if err != nil {
			return errors.Wrap(err, "update status")
		}
		updated, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return errors.Wrap(err, "update status")
			}
			var exists bool
			if err := tx.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
				return errors.Wrap(err, "check order exists")
			}
			if !exists {
				return order.ErrNotFound
			}
			return order.ErrConflict
		}

		if _, err := tx.Exec(ctx, insertStatusLogSQL,
			id, int16(change.From.Code()), int16(change.To.Code()),
			string(change.ActorRole), change.ActorID, change.ChangedAt,
		); err != nil {
			return errors.Wrap(err, "insert status log")
		}

		orders := []order.Order{updated}
		if err := loadItems(ctx, tx, orders); err != nil {
			return err
		}
		updated = orders[0]
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) || errors.Is(err, order.ErrConflict) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "transition order %q", id)
	}
	return &updated, nil
}

// History returns the status changes of an order, oldest first.
func (r *OrderRepository) History(ctx context.Context, id string) ([]order.StatusChange, error) {
	rows, err := r.pool.Query(ctx, listStatusLogSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "order %q history", id)
	}
	changes, err := pgx.CollectRows(rows, scanStatusChange)
	if err != nil {
		return nil, errors.Wrapf(err, "order %q history", id)
	}
	if len(changes) == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
			return nil, errors.Wrap(err, "check order exists")
		}
		if !exists {
			return nil, order.ErrNotFound
		}
	}
	return changes, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadItems fills Items of every order with a single ANY($1) query.
func loadItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity); err != nil {
			return errors.Wrap(err, "scan order item")
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "list order items")
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status int16
		rc     payment.Receipt
	)
	if err := row.Scan(
		&o.ID, &o.CustomerID, &status, &o.Subtotal, &o.Discount, &o.Total, &o.CouponCode,
		&o.DeliveryAddress, &o.Phone, &o.Notes,
		&rc.TransactionID, &rc.AuthorizationCode, &rc.IssuerName, &rc.Amount, &rc.Method,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return order.Order{}, err
	}
	s, err := order.StatusFromCode(int(status))
	if err != nil {
		return order.Order{}, err
	}
	o.Status = s
	o.Receipt = &rc
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func scanStatusChange(row pgx.CollectableRow) (order.StatusChange, error) {
	var (
		c        order.StatusChange
		from, to int16
		role     string
	)
	if err := row.Scan(&from, &to, &role, &c.ActorID, &c.ChangedAt); err != nil {
		return order.StatusChange{}, err
	}
	var err error
	if c.From, err = order.StatusFromCode(int(from)); err != nil {
		return order.StatusChange{}, err
	}
	if c.To, err = order.StatusFromCode(int(to)); err != nil {
		return order.StatusChange{}, err
	}
	c.ActorRole = auth.Role(role)
	c.ChangedAt = c.ChangedAt.UTC()
	return c, nil
}
