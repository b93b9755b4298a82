package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/events/kafka"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/mongodb"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// orderStore is implemented by both storage backends.
type orderStore interface {
	order.Repository
	order.Checkout
}

// backend groups the repositories of the configured storage driver.
type backend struct {
	products product.Repository
	carts    cart.Repository
	orders   orderStore
	ping     health.Pinger
	close    func()
}

func openBackend(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (*backend, error) {
	switch cfg.Driver {
	case DriverMongo:
		store, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, errors.Wrap(err, "ensure indexes")
		}
		lg.Info("Using MongoDB storage", zap.String("database", cfg.MongoDatabase))
		return &backend{
			products: mongodb.NewProductRepository(store),
			carts:    mongodb.NewCartRepository(store),
			orders:   mongodb.NewOrderRepository(store),
			ping:     store,
			close: func() {
				if err := store.Close(context.Background()); err != nil {
					lg.Warn("Close mongo client", zap.Error(err))
				}
			},
		}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Using PostgreSQL storage")
		return &backend{
			products: postgres.NewProductRepository(pool),
			carts:    postgres.NewCartRepository(pool),
			orders:   postgres.NewOrderRepository(pool),
			ping:     pool,
			close:    pool.Close,
		}, nil
	}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage.Driver))

	store, err := openBackend(ctx, lg, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.close()

	healthSvc := health.New()
	healthSvc.Register(health.Check{
		Name:    cfg.Storage.Driver,
		Kind:    health.Readiness,
		Func:    health.PingCheck(store.ping),
		Timeout: 5 * time.Second,
	})
	healthSvc.Register(health.Check{
		Name: "goroutines",
		Kind: health.Liveness,
		Func: health.GoroutineCountCheck(10000),
	})

	// Order events are optional.
	var publisher order.Publisher = order.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return errors.Wrap(err, "create kafka publisher")
		}
		defer p.Close()
		publisher = p
		healthSvc.Register(health.Check{
			Name: "kafka",
			Kind: health.Readiness,
			Func: health.PingCheck(p),
		})
		lg.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	productService := product.NewService(store.products)
	cartService := cart.NewService(store.carts, store.products)
	orderService, err := order.NewService(store.orders, store.orders, order.Options{
		Publisher:     publisher,
		MeterProvider: m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.New(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, productService, cartService, orderService)

	mux := http.NewServeMux()
	mux.Handle("GET /livez", healthSvc.Handler(health.Liveness))
	mux.Handle("GET /readyz", healthSvc.Handler(health.Readiness))
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
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
