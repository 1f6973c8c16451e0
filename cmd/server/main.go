// Command server runs the post scheduler: the HTTP API, the SQLite-backed
// persistence layer, and the background timer loop that publishes due posts,
// replays failed ones, and refreshes engagement analytics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	_ "github.com/threadflow/go-post-scheduler/docs"
	"github.com/threadflow/go-post-scheduler/internal/clientcache"
	"github.com/threadflow/go-post-scheduler/internal/config"
	"github.com/threadflow/go-post-scheduler/internal/gateway"
	httpapi "github.com/threadflow/go-post-scheduler/internal/http"
	"github.com/threadflow/go-post-scheduler/internal/observability"
	"github.com/threadflow/go-post-scheduler/internal/repo"
	"github.com/threadflow/go-post-scheduler/internal/scheduler"
	"github.com/threadflow/go-post-scheduler/internal/services"
	"github.com/threadflow/go-post-scheduler/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title        Post Scheduler API
// @version      1.0
// @description  Scheduled publishing, retry queue, and engagement analytics for social posts.
// @BasePath     /api/v1
func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	version = sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", "post-scheduler").Str("version", version).Logger()

	gin.SetMode(cfg.GinMode)

	// Tracing
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	// Database
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			logger.Fatal().Err(err).Msg("gorm tracing plugin failed")
		}
	}

	// Publishing gateway and the per-owner client cache
	factory := gateway.NewThreadsFactory(gateway.ThreadsConfig{
		BaseURL:     cfg.Gateway.BaseURL,
		Timeout:     cfg.Gateway.Timeout,
		RPS:         cfg.Gateway.RPS,
		Burst:       cfg.Gateway.Burst,
		BreakerName: cfg.Gateway.BreakerName,
	})
	clients, err := clientcache.New(factory, int(cfg.Gateway.ClientCacheSize), cfg.Gateway.ClientCacheTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("client cache init failed")
	}
	defer clients.Close()

	// Background jobs
	sc := cfg.Scheduler
	pub := services.NewPublisher(db, clients, logger, sc.DueBatchLimit, sc.MaxAttempts, sc.BackoffStep)
	ret := services.NewRetrier(db, pub, logger, sc.RetryBatchLimit)
	ana := services.NewAnalytics(db, clients, logger, sc.AnalyticsBatchLimit, sc.AnalyticsWindow)

	core := scheduler.New(logger,
		scheduler.Job{Name: scheduler.JobDueCheck, Interval: sc.DueCheckInterval, Run: pub.RunDueCheck},
		scheduler.Job{Name: scheduler.JobRetrySweep, Interval: sc.RetryInterval, Run: ret.RunSweep},
		scheduler.Job{Name: scheduler.JobAnalyticsRefresh, Interval: sc.AnalyticsInterval, Run: ana.RunRefresh},
	)
	// SCHEDULER_DISABLED runs an API-only instance (useful when another
	// replica owns the timer loop).
	if sysutil.IsTruthy(os.Getenv("SCHEDULER_DISABLED")) {
		logger.Warn().Msg("background scheduler disabled")
	} else if err := core.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	// HTTP surface
	r := gin.New()
	httpapi.RegisterRoutes(r, db, core, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown: stop accepting requests, drain in-flight jobs, then
	// flush traces.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := core.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("scheduler shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown")
	}

	logger.Info().Msg("bye")
}
