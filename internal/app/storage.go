package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
	"github.com/xenking/kart-session/internal/storage/boltdb"
	"github.com/xenking/kart-session/internal/storage/memory"
	"github.com/xenking/kart-session/internal/storage/postgres"
	"github.com/xenking/kart-session/pkg/health"
)

// stores holds the store implementations selected by StorageConfig.
type stores struct {
	carts    cart.Store
	recents  recent.Store
	products product.Repository

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores opens the configured stores and registers their readiness
// checks on h.
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		h.AddReadinessCheck("postgres", cfg.Cart.StoreTimeout, health.PingCheck(pool))
		s.carts = postgres.NewCartRepository(pool)
		s.products = postgres.NewProductRepository(pool)
		if cfg.recentDriver() == DriverPostgres {
			s.recents = postgres.NewRecentRepository(pool)
		}
	default:
		lg.Warn("Using in-memory storage, data is lost on restart")
		s.carts = memory.NewCartStore()
		s.products = memory.NewProductRepository()
	}

	switch cfg.recentDriver() {
	case DriverBolt:
		db, err := boltdb.Open(cfg.Storage.RecentPath)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "open recent store")
		}
		s.closers = append(s.closers, func() {
			if err := db.Close(); err != nil {
				lg.Error("Close recent store", zap.Error(err))
			}
		})
		h.AddReadinessCheck("recent", cfg.Cart.StoreTimeout, health.PingCheck(db))
		s.recents = db
	case DriverMemory:
		s.recents = memory.NewRecentStore()
	}
	return s, nil
}
