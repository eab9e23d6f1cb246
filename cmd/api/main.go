package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/sweetshop/sweetshop-backend/api/routes"
	"github.com/sweetshop/sweetshop-backend/internal/auth"
	"github.com/sweetshop/sweetshop-backend/internal/sweets"
	"github.com/sweetshop/sweetshop-backend/internal/users"
	"github.com/sweetshop/sweetshop-backend/pkg/auth/session"
	"github.com/sweetshop/sweetshop-backend/pkg/config"
	"github.com/sweetshop/sweetshop-backend/pkg/db"
	"github.com/sweetshop/sweetshop-backend/pkg/env"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
	"github.com/sweetshop/sweetshop-backend/pkg/metrics"
	"github.com/sweetshop/sweetshop-backend/pkg/migrate"
	"github.com/sweetshop/sweetshop-backend/pkg/redis"
	"github.com/sweetshop/sweetshop-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	loaded, err := env.LoadDotenv(os.Getenv(config.EnvAppEnv))
	if err != nil {
		logg.Error(context.Background(), "failed to parse dotenv file", err)
		os.Exit(1)
	}
	if len(loaded) == 0 {
		logg.Warn(context.Background(), "no dotenv file found, relying on environment")
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
		_ = dbClient.Close()
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	closeAll := func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}
	defer closeAll()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		closeAll()
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Hasher:         security.NewHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		AuthConfig:     cfg.Auth,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		closeAll()
		os.Exit(1)
	}

	sweetsService, err := sweets.NewService(sweets.ServiceParams{
		Repo:    sweets.NewRepository(dbClient.DB()),
		DB:      dbClient,
		Logger:  logg,
		Metrics: metrics.NewInventoryMetrics(registry),
	})
	if err != nil {
		logg.Error(ctx, "failed to create sweets service", err)
		closeAll()
		os.Exit(1)
	}

	// platform-assigned PORT wins over SWEETSHOP_APP_PORT
	if port := os.Getenv("PORT"); port != "" {
		cfg.App.Port = port
	}
	addr := cfg.App.Addr()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			sweetsService,
			metrics.NewHTTPMetrics(registry),
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
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
			closeAll()
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(context.Background(), "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
