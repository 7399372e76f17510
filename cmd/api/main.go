package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propstack/buyer-leads/internal/api/router"
	"github.com/propstack/buyer-leads/internal/auth"
	"github.com/propstack/buyer-leads/internal/buyers"
	appconfig "github.com/propstack/buyer-leads/internal/config"
	"github.com/propstack/buyer-leads/internal/observability/metrics"
	"github.com/propstack/buyer-leads/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting buyer-leads API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	buyerMetrics := metrics.NewBuyerMetrics(registry)

	var repo buyers.Repository
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = buyers.NewPostgresRepository(pool)
	} else {
		// Dev fallback so the server runs without a database.
		logger.Warn("DATABASE_URL not set, using in-memory repository")
		repo = buyers.NewInMemoryRepository()
	}

	service := buyers.NewService(repo, logger, buyerMetrics)
	importer := buyers.NewImporter(repo, logger, buyerMetrics)
	buyersHandler := buyers.NewHandler(service, importer, logger)
	authHandler := auth.NewHandler(cfg.AuthJWTSecret, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		BuyersHandler:      buyersHandler,
		AuthHandler:        authHandler,
		AuthSecret:         cfg.AuthJWTSecret,
		AllowDevTokens:     cfg.IsDevelopment(),
		CreateRatePerMin:   cfg.CreateRatePerMin,
		UpdateRatePerMin:   cfg.UpdateRatePerMin,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
