package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-orders/db"
	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/seed"
	"github.com/xenking/kart-orders/internal/storage/postgres"
)

type options struct {
	databaseURL   string
	productsFile  string
	apiKey        string
	apiKeyPepper  string
	sessionSecret string
	customerID    string
	tokenTTL      time.Duration
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "path to products JSON file (defaults to the embedded catalog)")
	flag.StringVar(&opts.apiKey, "api-key", "", "operator API key to seed (or KART_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KART_API_KEY_PEPPER env)")
	flag.StringVar(&opts.sessionSecret, "session-secret", "", "secret for the demo customer token (or KART_SESSION_SECRET env)")
	flag.StringVar(&opts.customerID, "customer-id", "demo-customer", "subject of the demo customer token")
	flag.DurationVar(&opts.tokenTTL, "token-ttl", 30*24*time.Hour, "lifetime of the demo customer token")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.apiKey = orEnv(opts.apiKey, "KART_SEED_API_KEY")
	opts.apiKeyPepper = orEnv(opts.apiKeyPepper, "KART_API_KEY_PEPPER")
	opts.sessionSecret = orEnv(opts.sessionSecret, "KART_SESSION_SECRET")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or KART_SEED_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if opts.sessionSecret == "" {
		slog.Warn("no session secret given, skipping demo customer token")
		return nil
	}
	token, err := auth.IssueToken([]byte(opts.sessionSecret),
		auth.Actor{ID: opts.customerID, Role: auth.RoleCustomer}, opts.tokenTTL, time.Now())
	if err != nil {
		return errors.Wrap(err, "issue demo token")
	}
	slog.Info("issued demo customer token", slog.String("customer_id", opts.customerID))
	fmt.Println(token)
	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, path string) error {
	var (
		r   io.ReadCloser
		err error
	)
	if path == "" {
		slog.Info("reading embedded products catalog")
		r, err = db.Seed.Open(db.ProductsFile)
	} else {
		slog.Info("reading products file", slog.String("path", path))
		r, err = os.Open(path)
	}
	if err != nil {
		return errors.Wrap(err, "open products")
	}
	defer func() { _ = r.Close() }()

	products, err := seed.ReadProducts(r)
	if err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	return repo.Upsert(ctx, products)
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	f, err := db.Seed.Open(db.CouponsFile)
	if err != nil {
		return errors.Wrap(err, "open coupons")
	}
	defer func() { _ = f.Close() }()

	var coupons []coupon.Coupon
	if err := seed.ReadCoupons(f, func(c coupon.Coupon) error {
		coupons = append(coupons, c)
		slog.Info("read coupon", slog.String("code", c.Code), slog.String("kind", string(c.Kind)))
		return nil
	}); err != nil {
		return err
	}
	return repo.Upsert(ctx, coupons)
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashAPIKey(apiKey, []byte(pepper)),
		Name:    "Default operator console key",
		Scopes:  []string{"orders:write"},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}
	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))
	return nil
}
