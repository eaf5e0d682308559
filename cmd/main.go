package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/handler"
	"github.com/pulsedesk/notification-engine/internal/health"
	"github.com/pulsedesk/notification-engine/internal/infra/analyticsexporter"
	"github.com/pulsedesk/notification-engine/internal/infra/localstore"
	"github.com/pulsedesk/notification-engine/internal/infra/remotechannel"
	"github.com/pulsedesk/notification-engine/internal/infra/syncstore"
	"github.com/pulsedesk/notification-engine/internal/observability/metrics"
	"github.com/pulsedesk/notification-engine/internal/observability/middleware"
	"github.com/pulsedesk/notification-engine/internal/service/admission"
	"github.com/pulsedesk/notification-engine/internal/service/analytics"
	"github.com/pulsedesk/notification-engine/internal/service/batch"
	"github.com/pulsedesk/notification-engine/internal/service/behavior"
	"github.com/pulsedesk/notification-engine/internal/service/orchestrator"
	"github.com/pulsedesk/notification-engine/internal/service/position"
	syncsvc "github.com/pulsedesk/notification-engine/internal/service/sync"
)

// Version is set via ldflags at build time
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs, err := initObservability(ctx)
	if err != nil {
		slog.Error("failed to initialize observability", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("observability shutdown error", slog.String("error", err.Error()))
		}
	}()

	slog.SetDefault(obs.Logger())

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}

	if err := config.ValidateForRun(cfg); err != nil {
		slog.Error("configuration validation error", slog.String("error", err.Error()))
		return 1
	}

	httpMetrics, err := metrics.NewHTTPMetrics()
	if err != nil {
		slog.Error("failed to initialize HTTP metrics", slog.String("error", err.Error()))
		return 1
	}

	notifyMetrics, err := metrics.NewNotifyMetrics()
	if err != nil {
		slog.Error("failed to initialize notify metrics", slog.String("error", err.Error()))
		return 1
	}

	// Initialize analytics exporter (InfluxDB for local, BigQuery for gcloud)
	exporterCfg := analyticsexporter.LoadConfig()
	exporter, err := analyticsexporter.NewExporter(ctx, exporterCfg)
	if err != nil {
		slog.Error("failed to initialize analytics exporter", slog.String("error", err.Error()))
		return 1
	}

	store, err := localstore.Open(cfg.LocalStore)
	if err != nil {
		slog.Error("failed to open local store",
			slog.String("path", cfg.LocalStore.Path),
			slog.String("error", err.Error()),
		)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close local store", slog.String("error", err.Error()))
		}
	}()

	slog.Info("local store opened", slog.String("path", cfg.LocalStore.Path))

	redisClient := redis.NewClient(cfg.Redis.Options())

	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		slog.Error("failed to instrument redis tracing",
			slog.String("event", "redis.otel.tracing.fail"),
			slog.String("error", err.Error()),
		)
		return 1
	}

	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		slog.Error("failed to instrument redis metrics",
			slog.String("event", "redis.otel.metrics.fail"),
			slog.String("error", err.Error()),
		)
		return 1
	}

	// Redis only backs cross-device sync. When it is unreachable the
	// engine starts local-only and the offline queue takes over until
	// the channel reconnects.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, starting local-only",
			slog.String("event", "redis.connect.fail"),
			slog.String("addr", cfg.Redis.Addr),
			slog.String("error", err.Error()),
		)
	} else {
		slog.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	defer func() {
		if err := redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}()

	syncRepo := syncstore.NewSyncRepository(redisClient)
	channel := remotechannel.NewRedis(redisClient, cfg.Sync.Channel)

	clk := clock.New()

	behaviorMgr := behavior.NewManager(store)
	admissionCtl := admission.NewController(cfg.Admission, clk, notifyMetrics)
	batcher := batch.NewScheduler(cfg.Batch, clk, behaviorMgr, notifyMetrics)
	resolver := position.NewResolver()

	device := domain.DeviceDescriptor{Class: domain.DeviceDesktop}
	coordinator := syncsvc.NewCoordinator(cfg.Sync, cfg.UserID, device, syncRepo, channel, clk, notifyMetrics)
	recorder := analytics.NewRecorder(cfg.Analytics, store, exporter, clk, notifyMetrics)

	orch := orchestrator.New(clk, admissionCtl, batcher, behaviorMgr, resolver, coordinator, recorder, store)
	if err := orch.Start(ctx); err != nil {
		slog.Error("failed to start orchestrator", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		orch.Stop(stopCtx)
	}()

	notifyHandler := handler.NewNotifyHandler(orch)
	metricsHandler := handler.NewMetricsHandler(recorder)

	// Setup router with observability middleware
	r := gin.New()
	r.Use(middleware.Gin(middleware.GinConfig{
		SkipPaths:   []string{"/health", "/health/live", "/health/ready"},
		TracerName:  "github.com/pulsedesk/notification-engine/internal/observability/middleware",
		HTTPMetrics: httpMetrics,
	}))
	r.Use(middleware.PanicRecoveryGin())

	// Health check endpoints
	healthChecker := health.NewChecker(redisClient, store, Version)
	r.GET("/health/live", healthChecker.LiveHandler())
	r.GET("/health/ready", healthChecker.ReadyHandler())
	r.GET("/health", healthChecker.ReadyHandler())

	// API routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/notify", notifyHandler.HandleNotify)
		v1.POST("/notify/:category", notifyHandler.HandleNotifyCategory)
		v1.POST("/interaction", notifyHandler.HandleInteraction)
		v1.POST("/configure", notifyHandler.HandleConfigure)
		v1.POST("/viewport", notifyHandler.HandleViewport)
		v1.GET("/metrics/summary", metricsHandler.HandleSummary)
		v1.GET("/metrics/insights", metricsHandler.HandleInsights)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Port),
			slog.String("user_id", cfg.UserID),
			slog.Int("max_per_30s", cfg.Admission.MaxPer30s),
			slog.Int("max_per_minute", cfg.Admission.MaxPerMinute),
			slog.Bool("batching_enabled", cfg.Batch.Enabled),
		)
		serverErr <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown server", slog.String("error", err.Error()))
			return 1
		}

		slog.Info("server exited properly")
		return 0

	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return 0
		}
		slog.Error("server exited with error", slog.String("error", err.Error()))
		return 1
	}
}
