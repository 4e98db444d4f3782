package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-orders/internal/domain/coupon"
)

const (
	couponColumns = `code, kind, value, min_quantity, min_amount, max_discount, description`

	findCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	listCouponCodesSQL = `SELECT code FROM coupons ORDER BY code`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			value = EXCLUDED.value,
			min_quantity = EXCLUDED.min_quantity,
			min_amount = EXCLUDED.min_amount,
			max_discount = EXCLUDED.max_discount,
			description = EXCLUDED.description`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository provides coupon lookups backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode retrieves a coupon by its normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &c, nil
}

// ListCodes streams every coupon code to fn.
func (r *CouponRepository) ListCodes(ctx context.Context, fn func(code string) error) error {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}
	defer rows.Close()

	var code string
	for rows.Next() {
		if err := rows.Scan(&code); err != nil {
			return errors.Wrap(err, "scan coupon code")
		}
		if err := fn(code); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "list coupon codes")
	}
	return nil
}

// Upsert writes coupons in a single batch. Existing codes are replaced.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL,
			c.Code, string(c.Kind), c.Value, c.MinQuantity, c.MinAmount, c.MaxDiscount, c.Description,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c    coupon.Coupon
		kind string
	)
	err := row.Scan(&c.Code, &kind, &c.Value, &c.MinQuantity, &c.MinAmount, &c.MaxDiscount, &c.Description)
	c.Kind = coupon.Kind(kind)
	return c, err
}
