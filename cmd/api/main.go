package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/auth"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/orders"
	product "github.com/angelmondragon/storefront/internal/products"
	"github.com/angelmondragon/storefront/internal/users"
	"github.com/angelmondragon/storefront/pkg/auth/tokens"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/outbox"
	"github.com/angelmondragon/storefront/pkg/redis"
	"github.com/angelmondragon/storefront/pkg/session"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
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

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()

	handler, err := buildHandler(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to wire api", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}

func buildHandler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (http.Handler, error) {
	conn := dbClient.DB()

	sessions, err := session.NewStore(redisClient, cfg.Session.TTL)
	if err != nil {
		return nil, err
	}
	tokenRegistry, err := tokens.NewRegistry(redisClient, cfg.JWT.Expiration())
	if err != nil {
		return nil, err
	}

	var (
		recorder      *metrics.Storefront
		metricsHandle http.Handler
	)
	if cfg.FeatureFlags.Metrics {
		recorder = metrics.NewStorefront(prometheus.DefaultRegisterer)
		metricsHandle = promhttp.Handler()
	} else {
		recorder = metrics.NewStorefront(nil)
	}

	productRepo := product.NewRepository(conn)
	productSvc, err := product.NewService(productRepo)
	if err != nil {
		return nil, err
	}

	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	orderRepo := orders.NewRepository(conn)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Tx:      dbClient,
		Outbox:  emitter,
		Metrics: recorder,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Products: productRepo,
		Orders:   orderRepo,
		Outbox:   emitter,
		Metrics:  recorder,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(conn),
		Tokens:         tokenRegistry,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		KV:       redisClient,
		Sessions: sessions,
		Tokens:   tokenRegistry,
		Dwell:    recorder,
		Now:      time.Now,
		Auth:     authSvc,
		Products: productSvc,
		Checkout: checkoutSvc,
		Orders:   orderSvc,
		Metrics:  metricsHandle,
	}), nil
}
