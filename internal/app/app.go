package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-session/internal/api"
	"github.com/xenking/kart-session/internal/catalog"
	"github.com/xenking/kart-session/internal/reconcile"
	"github.com/xenking/kart-session/internal/session"
	"github.com/xenking/kart-session/pkg/health"
	"github.com/xenking/kart-session/pkg/httpmiddleware"
)

const serviceName = "kart-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("recent_storage", cfg.recentDriver()),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.Close()

	board, err := seedBoard(ctx, catalog.NewService(st.products, st.carts, st.recents))
	if err != nil {
		return errors.Wrap(err, "seed board")
	}

	publisher := reconcile.Multi{board}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := reconcile.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kp.Close(); err != nil {
				lg.Error("Close kafka publisher", zap.Error(err))
			}
		}()
		publisher = append(publisher, kp)
		lg.Info("Publishing cart differences",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	svc := catalog.NewService(st.products, st.carts, st.recents, catalog.WithPublisher(publisher))

	registry, err := session.NewRegistry(st.carts, session.RegistryConfig{
		Session: session.Options{
			PageSize:     cfg.Cart.PageSize,
			StoreTimeout: cfg.Cart.StoreTimeout,
		},
		TTL:            cfg.Cart.SessionTTL,
		Publisher:      publisher,
		Logger:         lg.Named("session"),
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create session registry")
	}
	registry.StartSweeper(ctx, cfg.Cart.SweepInterval)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	api.NewHandler(api.Config{RecentLimit: cfg.Recent.Limit}, registry, svc, board).
		Register(mux, httpmiddleware.Throttle(ctx, httpmiddleware.ThrottleConfig{
			Max:    cfg.Throttle.Max,
			Window: cfg.Throttle.Window,
		}))

	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
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
		if n := registry.CloseAll(shutdownCtx); n > 0 {
			lg.Info("Closed open sessions", zap.Int("count", n))
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

// seedBoard builds the board from the first catalog page and the stored cart
// counter. Closed sessions and stepper changes move it forward.
func seedBoard(ctx context.Context, svc *catalog.Service) (*reconcile.Board, error) {
	seed, err := svc.ListProducts(ctx, 0, 100)
	if err != nil {
		return nil, err
	}
	counter, err := svc.CartAmount(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.NewBoard(seed, counter), nil
}
