// Package app wires the order API together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/payment"
	"github.com/xenking/kart-orders/internal/handler"
	"github.com/xenking/kart-orders/internal/ttlstore"
	"github.com/xenking/kart-orders/pkg/health"
	"github.com/xenking/kart-orders/pkg/httpmiddleware"
)

const idempotencyKeyPrefix = "kart:idempotency:"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.close()

	catalog := coupon.NewCatalog(st.coupons)
	if n, err := catalog.Warm(ctx); err != nil {
		// Lookups still work without the prefilter, just slower.
		lg.Warn("Coupon prefilter not built", zap.Error(err))
	} else {
		lg.Info("Coupon catalog loaded", zap.Int("codes", n))
	}

	keys, closeKeys := idempotencyStore(ctx, lg, cfg, healthSvc)
	defer closeKeys()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	domainOpts := []order.Option{
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	orderService := order.NewService(st.products, catalog, payment.NewSimulator(), st.orders, domainOpts...)
	controller := order.NewController(st.orders, domainOpts...)

	h := handler.NewHandler(
		handler.Config{IdempotencyTTL: cfg.Idempotency.TTL, PendingTTL: cfg.Idempotency.PendingTTL},
		st.products,
		orderService,
		controller,
		keys,
	)
	securityHandler := handler.NewSecurityHandler(st.apikeys, []byte(cfg.APIKeyPepper), []byte(cfg.SessionSecret))

	r := chi.NewRouter()
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Route("/api", func(r chi.Router) {
		r.Use(securityHandler.Middleware)
		h.Routes(r)
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("kart-orders", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{
					"Content-Type", "Authorization", handler.APIKeyHeader,
					handler.IdempotencyHeader, httpmiddleware.RequestIDHeader,
				},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// idempotencyStore returns the Redis-backed store when RedisAddr is set and
// a swept in-memory store otherwise.
func idempotencyStore(ctx context.Context, lg *zap.Logger, cfg *Config, hc *health.Health) (ttlstore.Store, func()) {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := ttlstore.NewRedis(rdb, idempotencyKeyPrefix)
		hc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", store))
		lg.Info("Idempotency keys stored in Redis", zap.String("addr", cfg.RedisAddr))
		return store, func() {
			if err := rdb.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		}
	}

	store := ttlstore.NewMemory()
	go store.Run(ctx, cfg.Idempotency.Sweep, func(removed int) {
		if removed > 0 {
			lg.Debug("Swept idempotency keys", zap.Int("removed", removed))
		}
	})
	return store, func() {}
}
