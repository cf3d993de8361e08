package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rcong315/selecta-sync/internal/adapter"
	"github.com/rcong315/selecta-sync/internal/adapter/memadapter"
	"github.com/rcong315/selecta-sync/internal/breaker"
	"github.com/rcong315/selecta-sync/internal/config"
	"github.com/rcong315/selecta-sync/internal/exec"
	"github.com/rcong315/selecta-sync/internal/logging"
	"github.com/rcong315/selecta-sync/internal/matching"
	"github.com/rcong315/selecta-sync/internal/metrics"
	"github.com/rcong315/selecta-sync/internal/model"
	"github.com/rcong315/selecta-sync/internal/queue"
	"github.com/rcong315/selecta-sync/internal/ratelimit"
	"github.com/rcong315/selecta-sync/internal/repository/sqlite"
	"github.com/rcong315/selecta-sync/internal/safety"
	"github.com/rcong315/selecta-sync/internal/snapshot"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	exec.InitializeLogger(logger)
	sqlite.InitializeLogger(logger)

	repo, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("opening repository", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer repo.Close()

	thresholds := matching.Thresholds{Auto: cfg.MatchAutoThreshold, Candidate: cfg.MatchCandidateThreshold}

	gate := safety.New(cfg.TestModeEnabled, cfg.TestPrefixSet)
	limiter := ratelimit.NewRegistry(cfg.RetryMaxAttempts, cfg.RetryBaseDelay(), cfg.RetryJitterRatio)
	breakers := breaker.NewRegistry()
	metricsCollectors := metrics.New()
	breakers.WithMetrics(metricsCollectors)

	executor := exec.New(repo, snapshot.New(repo), gate, limiter, breakers).WithMetrics(metricsCollectors)

	dispatcher := queue.New(queue.Config{
		GlobalConcurrency:     cfg.MaxGlobalSyncConcurrency,
		PerAdapterConcurrency: cfg.MaxPerAdapterConcurrency,
		Logger:                logger,
	}).WithMetrics(metricsCollectors)

	adapters := map[model.Platform]adapter.Adapter{
		model.PlatformStream:    memadapter.New(string(model.PlatformStream), adapter.CapabilityFlags{CanCreate: true, CanModifyShared: false, RateBudgetPerMinute: 180}),
		model.PlatformDJLibrary: memadapter.New(string(model.PlatformDJLibrary), adapter.CapabilityFlags{CanCreate: true, CanDelete: true, OwnsFilesystemPaths: true, RateBudgetPerMinute: 600}),
		model.PlatformVinyl:     memadapter.New(string(model.PlatformVinyl), adapter.CapabilityFlags{CanCreate: false, IsPersonalOnly: true, RateBudgetPerMinute: 60}),
		model.PlatformVideo:     memadapter.New(string(model.PlatformVideo), adapter.CapabilityFlags{CanCreate: true, CanModifyShared: true, RateBudgetPerMinute: 120}),
	}

	srv := &Server{repo: repo, thresholds: thresholds, adapters: adapters, dispatcher: dispatcher, executor: executor, logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	go dispatcher.Run(ctx)

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(APIKeyMiddleware(logger, "/health", "/metrics"))

	router.GET("/health", srv.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/bindings/:id/preview", srv.previewHandler)
	router.POST("/bindings/:id/sync", srv.syncHandler)
	router.POST("/emergency-stop", srv.emergencyStopHandler(gate))
	router.POST("/emergency-resume", srv.emergencyResumeHandler(gate))

	logger.Info("selecta-sync starting", zap.String("http_port", cfg.HTTPPort), zap.Bool("test_mode", cfg.TestModeEnabled))
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
}
