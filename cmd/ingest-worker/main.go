package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
	"github.com/gsdriver/alexa-logger/internal/app/bootstrap"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/ingest"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if cfg.IngestQueueURL == "" {
		logger.Error("INGEST_QUEUE_URL is required")
		os.Exit(1)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	p := bootstrap.BuildPipeline(cfg, awsCfg, reg, logger)
	queue := ingest.NewSQSQueue(mainconfig.NewSQSClient(awsCfg), cfg.IngestQueueURL)
	worker := ingest.NewWorker(p, queue, bootstrap.SaveConfig(cfg), logger,
		ingest.WithWorkerCount(cfg.IngestWorkerCount),
		ingest.WithReceiveWaitSeconds(cfg.IngestWaitSeconds),
		ingest.WithReceiveBatchSize(cfg.IngestBatchSize),
		ingest.WithSaveTimeout(cfg.IngestSaveTimeout),
	)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	logger.Info("ingest worker started", "queue_url", cfg.IngestQueueURL, "bucket", cfg.LogBucket)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down ingest worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("ingest worker stopped")
	case <-doneCtx.Done():
		logger.Error("ingest worker shutdown timed out", "error", doneCtx.Err())
	}
	_ = metricsSrv.Shutdown(doneCtx)
}
