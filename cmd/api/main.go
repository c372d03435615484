package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/items"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// run owns every resource it opens; close failures are folded into the returned error.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(ctx, "redis not configured; rate limiting and idempotency are disabled")
	}

	var sessionStore session.Store = session.NewMemoryStore()
	if redisClient != nil {
		sessionStore = redisClient
	}
	sessionManager, err := session.NewManager(sessionStore, cfg.JWT)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	itemRepo := items.NewRepository(dbClient.DB())
	itemService, err := items.NewService(itemRepo)
	if err != nil {
		return err
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Store:   cartStore(cfg.Cart, dbClient, redisClient, logg),
		Locker:  cartLocker(cfg.Cart, redisClient, logg),
		Lookup:  items.NewLookup(itemRepo),
		Metrics: metrics.NewCartMetrics(reg),
		Logger:  logg,
		Retry: cart.RetryPolicy{
			MaxAttempts:    cfg.Cart.MergeMaxAttempts,
			InitialBackoff: cfg.Cart.MergeInitialBackoff,
			MaxBackoff:     cfg.Cart.MergeMaxBackoff,
		},
	})
	if err != nil {
		return err
	}
	transition := cart.NewTransition(cartService, logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Transition:     transition,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"cart_store": cfg.Cart.Store,
		"cart_lock":  cfg.Cart.Lock,
	})

	handler := routes.NewRouter(routes.Params{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Sessions:    sessionManager,
		Auth:        authService,
		Items:       itemService,
		Carts:       cartService,
		Transition:  transition,
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return multierr.Combine(server.Shutdown(shutdownCtx), <-errCh)
}

func cartStore(cfg config.CartConfig, dbClient *db.Client, redisClient *redis.Client, logg *logger.Logger) cart.Store {
	switch strings.ToLower(cfg.Store) {
	case config.CartStoreRedis:
		return cart.NewRedisStore(redisClient, logg)
	case config.CartStoreMemory:
		return cart.NewMemoryStore()
	default:
		return cart.NewDBStore(dbClient.DB(), logg)
	}
}

func cartLocker(cfg config.CartConfig, redisClient *redis.Client, logg *logger.Logger) cart.Locker {
	if strings.EqualFold(cfg.Lock, config.CartLockRedis) {
		return cart.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockWait, logg)
	}
	return cart.NewLocalLocker()
}
