package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/spendboard/spendboard/internal/app"
	"github.com/spendboard/spendboard/internal/observability"
	"github.com/spendboard/spendboard/internal/platform/cache"
	"github.com/spendboard/spendboard/internal/reports"
	reportshttp "github.com/spendboard/spendboard/internal/reports/http"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis ping, serving without a warm cache", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	reportMetrics, err := reports.NewMetrics(metrics.Registerer())
	if err != nil {
		logger.Error("register report metrics", slog.Any("error", err))
		os.Exit(1)
	}

	store := reports.NewRedisStore(redisClient, cfg.CacheTTL)
	reportService := reports.NewService(store, logger, cfg.ExchangePolicy(), reportMetrics)
	reportHandler := reportshttp.NewHandler(logger, reportService, cfg.UploadMaxBytes)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportHandler,
		Metrics:       metrics,
		Health: func(r *http.Request) error {
			pingCtx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx).Err()
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("env", cfg.AppEnv),
			slog.String("default_rate", cfg.DefaultExchangeRate.String()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
