package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suze-ad/finetech/internal/api/router"
	"github.com/suze-ad/finetech/internal/app/bootstrap"
	appconfig "github.com/suze-ad/finetech/internal/config"
	"github.com/suze-ad/finetech/internal/http/handlers"
	"github.com/suze-ad/finetech/internal/observability/metrics"
	"github.com/suze-ad/finetech/internal/upstream"
	"github.com/suze-ad/finetech/pkg/logging"
)

func main() {
	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting finetech chat API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.UpstreamWebhookURL == "" {
		logger.Error("UPSTREAM_WEBHOOK_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Warn("running without redis; sessions and transcripts are in-memory only")
	}

	leadsRepo, pool := bootstrap.BuildLeadsRepository(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	upstreamClient := upstream.NewClient(cfg.UpstreamWebhookURL,
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithLogger(logger),
	)

	registry := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(registry)

	chatHandler := handlers.NewChatHandler(handlers.ChatHandlerConfig{
		Upstream:         upstreamClient,
		Redis:            redisClient,
		Transcript:       bootstrap.BuildTranscriptStore(redisClient, cfg),
		Leads:            leadsRepo,
		Metrics:          chatMetrics,
		Logger:           logger,
		SessionKeyPrefix: cfg.SessionKeyPrefix,
		SessionTTL:       cfg.SessionTTL,
		EngineIdleTTL:    cfg.EngineIdleTTL,
	})

	routerCfg := &router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRateLimit:      5,
		ChatRateBurst:      10,
	}
	r := router.New(routerCfg)

	// No global read/write timeouts: /api/chat/ws holds connections open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
