package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
	"github.com/gsdriver/alexa-logger/internal/app/bootstrap"
	"github.com/gsdriver/alexa-logger/internal/checkpoint"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/internal/scheduler"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	store, err := bootstrap.BuildCheckpointStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build checkpoint store", "error", err)
		os.Exit(1)
	}

	p := bootstrap.BuildPipeline(cfg, awsCfg, prometheus.DefaultRegisterer, logger)
	job := newReportJob(p, store, cfg, logger)

	sched := scheduler.New(cfg.Location(), logger)
	if err := sched.Add("incremental-report", cfg.ReportSchedule, job); err != nil {
		logger.Error("failed to schedule report", "error", err)
		os.Exit(1)
	}
	sched.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down report worker...")
	sched.Stop()
}

// newReportJob writes reports next to REPORT_OUTPUT.
func newReportJob(p *pipeline.Pipeline, store checkpoint.Store, cfg *appconfig.Config, logger *logging.Logger) scheduler.Job {
	outputDir := filepath.Dir(cfg.ReportOutput)
	runner := pipeline.NewIncremental(p, store, cfg.CheckpointName, bootstrap.ProcessConfig(cfg), outputDir)
	return func(ctx context.Context) error {
		summary, out, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("incremental report written", "output", out, "records", summary.Records, "skipped", summary.Skipped)
		return nil
	}
}
