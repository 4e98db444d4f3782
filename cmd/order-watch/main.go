// Command order-watch follows orders through fulfillment by polling the
// orders API as a customer, an operator, or both.
package main

import (
	"context"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-orders/internal/client"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/poller"
)

type config struct {
	BaseURL  string        `default:"http://localhost:8080/api" usage:"orders API base URL"`
	Token    string        `usage:"customer session token"`
	APIKey   string        `usage:"operator API key"`
	Interval time.Duration `default:"30s" usage:"poll interval"`
	Timeout  time.Duration `default:"10s" usage:"per-poll timeout"`
}

func loadConfig() (*config, error) {
	var cfg config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART_WATCH",
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.Token == "" && cfg.APIKey == "" {
		return nil, errors.New("set a customer token, an operator API key, or both")
	}
	return &cfg, nil
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		newClient := func(auth client.Option) (*client.Client, error) {
			return client.New(cfg.BaseURL, auth,
				client.WithTracerProvider(m.TracerProvider()),
				client.WithMeterProvider(m.MeterProvider()),
			)
		}
		opts := []poller.Option{
			poller.WithInterval(cfg.Interval),
			poller.WithTimeout(cfg.Timeout),
		}

		g, ctx := errgroup.WithContext(ctx)
		if cfg.Token != "" {
			c, err := newClient(client.WithBearerToken(cfg.Token))
			if err != nil {
				return err
			}
			clg := lg.Named("customer")
			v := poller.NewCustomerView(c, append(opts, poller.WithLogger(clg))...)
			v.OnUpdate(watch(clg))
			g.Go(func() error { return v.Run(ctx) })
		}
		if cfg.APIKey != "" {
			c, err := newClient(client.WithAPIKey(cfg.APIKey))
			if err != nil {
				return err
			}
			olg := lg.Named("operator")
			v := poller.NewOperatorView(c, c, append(opts, poller.WithLogger(olg))...)
			v.OnUpdate(watch(olg))
			g.Go(func() error { return v.Run(ctx) })
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

// watch returns a snapshot callback that logs new orders, status changes and
// a per-status summary.
func watch(lg *zap.Logger) func([]order.Order) {
	var prev map[string]order.Status
	return func(orders []order.Order) {
		next := statuses(orders)
		for _, c := range diff(prev, next) {
			if c.from == nil {
				lg.Info("New order", zap.String("order_id", c.id), zap.Stringer("status", c.to))
				continue
			}
			lg.Info("Order status changed",
				zap.String("order_id", c.id),
				zap.Stringer("from", *c.from),
				zap.Stringer("to", c.to),
			)
		}
		prev = next

		counts := make(map[string]int)
		for _, o := range orders {
			counts[o.Status.String()]++
		}
		fields := make([]zap.Field, 0, len(counts)+1)
		fields = append(fields, zap.Int("total", len(orders)))
		for s, n := range counts {
			fields = append(fields, zap.Int(s, n))
		}
		lg.Debug("Orders polled", fields...)
	}
}
