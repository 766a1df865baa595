package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
	"github.com/gsdriver/alexa-logger/internal/api/router"
	"github.com/gsdriver/alexa-logger/internal/app/bootstrap"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/http/handlers"
	httpmiddleware "github.com/gsdriver/alexa-logger/internal/http/middleware"
	"github.com/gsdriver/alexa-logger/internal/ingest"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()

	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting alexa-logger API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"bucket", cfg.LogBucket,
	)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      setupRouter(cfg, awsCfg, prometheus.NewRegistry(), logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// setupRouter saves logs synchronously, or enqueues them when INGEST_QUEUE_URL is set.
func setupRouter(cfg *appconfig.Config, awsCfg aws.Config, reg *prometheus.Registry, logger *logging.Logger) http.Handler {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	p := bootstrap.BuildPipeline(cfg, awsCfg, reg, logger)

	var queue handlers.Enqueuer
	if cfg.IngestQueueURL != "" {
		queue = ingest.NewSQSQueue(mainconfig.NewSQSClient(awsCfg), cfg.IngestQueueURL)
		logger.Info("ingest queue enabled", "queue_url", cfg.IngestQueueURL)
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.IngestRateLimit > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.IngestRateLimit, cfg.IngestRateBurst)
	}

	return router.New(&router.Config{
		Logger:         logger,
		LogsHandler:    handlers.NewLogsHandler(p, queue, bootstrap.SaveConfig(cfg), logger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RateLimiter:    limiter,
	})
}
