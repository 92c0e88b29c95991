package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/internal/cron"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/outbox"
	"github.com/angelmondragon/storefront/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// run owns every resource so they are closed before main decides the exit code.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	var reg prometheus.Registerer
	if cfg.FeatureFlags.Metrics {
		reg = prometheus.DefaultRegisterer
		go serveMetrics(ctx, logg, net.JoinHostPort("", cfg.App.Port))
	}
	jobMetrics := metrics.NewCronJobMetrics(reg)

	service, err := buildService(cfg, logg, dbClient, redisClient, jobMetrics)
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, jobMetrics *metrics.CronJobMetrics) (*cron.Service, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outboxRepo,
		Retention:        time.Duration(cfg.Outbox.RetentionDays) * 24 * time.Hour,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	backlog, err := cron.NewOutboxBacklogJob(logg, outboxRepo, jobMetrics)
	if err != nil {
		return nil, fmt.Errorf("outbox backlog job: %w", err)
	}
	registry, err := cron.NewRegistry(retention, backlog)
	if err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, "cron:"+lockScope(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
}

// serveMetrics exposes /metrics until ctx is cancelled. A failure here is
// logged and does not stop the jobs.
func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener failed", err)
	}
}

// lockScope keeps environments sharing one Redis from blocking each other.
func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
