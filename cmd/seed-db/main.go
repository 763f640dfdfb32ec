package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/storage/postgres"
)

const maxLineSize = 1 << 20

func main() {
	var (
		databaseURL  string
		productsFile string
		concurrency  int
		cartLines    int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.jsonl", "JSON-lines products file, gzip when it ends in .gz")
	flag.IntVar(&concurrency, "concurrency", 8, "concurrent product upserts")
	flag.IntVar(&cartLines, "cart-lines", 7, "number of products put into the demo cart")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, concurrency, cartLines); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, concurrency, cartLines int) error {
	products, err := loadProducts(ctx, productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	slog.Info("products loaded", slog.Int("count", len(products)))

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := upsertProducts(ctx, postgres.NewProductRepository(pool), products, concurrency); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCart(ctx, postgres.NewCartRepository(pool), products[:min(cartLines, len(products))]); err != nil {
		return errors.Wrap(err, "seed cart")
	}
	return nil
}

func loadProducts(ctx context.Context, path string) ([]product.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return readProducts(ctx, r)
}

// readProducts decodes one product object per line, skipping blank lines.
func readProducts(ctx context.Context, r io.Reader) ([]product.Product, error) {
	var (
		out  []product.Product
		line int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		data := scanner.Bytes()
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}
		var p product.Product
		if err := p.Decode(jx.DecodeBytes(data)); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	return out, nil
}

type productUpserter interface {
	Upsert(ctx context.Context, p product.Product) error
}

func upsertProducts(ctx context.Context, repo productUpserter, products []product.Product, concurrency int) error {
	slog.Info("upserting products", slog.Int("count", len(products)), slog.Int("concurrency", concurrency))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, p := range products {
		g.Go(func() error {
			if err := repo.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %q", p.Title)
			}
			return nil
		})
	}
	return g.Wait()
}

type cartInserter interface {
	Insert(ctx context.Context, cp cart.CartProduct) error
}

// seedCart puts each product into the cart once, in order. Products already
// in the cart are left as they are.
func seedCart(ctx context.Context, carts cartInserter, products []product.Product) error {
	added := time.Now()
	inserted := 0
	for i, p := range products {
		cp := cart.NewCartProduct(p, added.Add(time.Duration(i)*time.Millisecond))
		cp.Amount = 1 + i%3
		err := carts.Insert(ctx, cp)
		switch {
		case errors.Is(err, cart.ErrDuplicateProduct):
			continue
		case err != nil:
			return errors.Wrapf(err, "insert cart product %q", p.Title)
		}
		inserted++
	}
	slog.Info("demo cart seeded", slog.Int("inserted", inserted), slog.Int("requested", len(products)))
	return nil
}
