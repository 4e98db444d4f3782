package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/db"
	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/product"
	"github.com/xenking/kart-orders/internal/seed"
	"github.com/xenking/kart-orders/internal/storage/memory"
	"github.com/xenking/kart-orders/internal/storage/postgres"
	"github.com/xenking/kart-orders/pkg/health"
)

// stores groups the repositories of one storage backend.
type stores struct {
	products product.Repository
	coupons  coupon.Repository
	orders   order.Repository
	apikeys  auth.Repository
	close    func()
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, hc *health.Health) (*stores, error) {
	if cfg.Storage == StorageMemory {
		return openMemory(ctx, lg, cfg)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	hc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))

	return &stores{
		products: postgres.NewProductRepository(pool),
		coupons:  postgres.NewCouponRepository(pool),
		orders:   postgres.NewOrderRepository(pool),
		apikeys:  postgres.NewAPIKeyRepository(pool),
		close:    pool.Close,
	}, nil
}

// openMemory builds in-process stores loaded with the embedded seed data.
// Orders are lost on restart.
func openMemory(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	pf, err := db.Seed.Open(db.ProductsFile)
	if err != nil {
		return nil, errors.Wrap(err, "open products seed")
	}
	defer func() { _ = pf.Close() }()
	products, err := seed.ReadProducts(pf)
	if err != nil {
		return nil, errors.Wrap(err, "read products seed")
	}

	coupons := memory.NewCouponStore()
	if err := loadCoupons(ctx, coupons); err != nil {
		return nil, err
	}

	apikeys := memory.NewAPIKeyStore()
	if cfg.OperatorAPIKey != "" {
		apikeys.Add(auth.APIKeyInfo{
			ID:      "dev-operator",
			KeyHash: auth.HashAPIKey(cfg.OperatorAPIKey, []byte(cfg.APIKeyPepper)),
			Name:    "Development operator",
			Scopes:  []string{"orders:write"},
		})
	} else {
		lg.Warn("No operator API key configured, operator endpoints are only reachable with operator tokens")
	}

	lg.Warn("Using in-memory storage, orders are lost on restart", zap.Int("products", len(products)))
	return &stores{
		products: memory.NewProductStore(products),
		coupons:  coupons,
		orders:   memory.NewOrderStore(),
		apikeys:  apikeys,
		close:    func() {},
	}, nil
}

func loadCoupons(ctx context.Context, store *memory.CouponStore) error {
	f, err := db.Seed.Open(db.CouponsFile)
	if err != nil {
		return errors.Wrap(err, "open coupons seed")
	}
	defer func() { _ = f.Close() }()

	r, err := seed.Decompress(f)
	if err != nil {
		return errors.Wrap(err, "open coupons seed")
	}
	defer func() { _ = r.Close() }()

	if err := seed.ReadCoupons(r, func(c coupon.Coupon) error {
		return store.Upsert(ctx, c)
	}); err != nil {
		return errors.Wrap(err, "read coupons seed")
	}
	return nil
}
