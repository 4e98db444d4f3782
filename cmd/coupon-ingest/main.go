package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/seed"
	"github.com/xenking/kart-orders/internal/storage/postgres"
)

const batchSize = 500

func main() {
	var (
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the files without writing to the database")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: coupon-ingest [flags] coupons.jsonl[.gz] ...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, dryRun); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string, dryRun bool) error {
	perFile, err := readFiles(ctx, files)
	if err != nil {
		return err
	}
	coupons := merge(files, perFile)
	slog.Info("coupons ready", slog.Int("count", len(coupons)))

	if dryRun || len(coupons) == 0 {
		return nil
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCouponRepository(pool)
	for start := 0; start < len(coupons); start += batchSize {
		end := min(start+batchSize, len(coupons))
		if err := repo.Upsert(ctx, coupons[start:end]); err != nil {
			return errors.Wrapf(err, "upsert coupons %d..%d", start, end)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(coupons)))
	}
	return nil
}

// readFiles parses every file concurrently. Gzip input is detected by its
// magic bytes.
func readFiles(ctx context.Context, files []string) ([][]coupon.Coupon, error) {
	out := make([][]coupon.Coupon, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			coupons, err := readFile(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			slog.Info("file parsed", slog.String("path", path), slog.Int("coupons", len(coupons)))
			out[i] = coupons
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readFile(ctx context.Context, path string) ([]coupon.Coupon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := seed.Decompress(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var coupons []coupon.Coupon
	err = seed.ReadCoupons(r, func(c coupon.Coupon) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		coupons = append(coupons, c)
		return nil
	})
	return coupons, err
}

// merge keeps one rule per code. Later files override earlier ones.
func merge(files []string, perFile [][]coupon.Coupon) []coupon.Coupon {
	index := make(map[string]int)
	var out []coupon.Coupon
	for i, coupons := range perFile {
		for _, c := range coupons {
			if j, ok := index[c.Code]; ok {
				slog.Warn("duplicate coupon code, keeping the later rule",
					slog.String("code", c.Code),
					slog.String("file", files[i]),
				)
				out[j] = c
				continue
			}
			index[c.Code] = len(out)
			out = append(out, c)
		}
	}
	return out
}
