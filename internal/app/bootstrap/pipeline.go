package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/observability/metrics"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/internal/report"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

// BuildPipeline wires the S3 client factory, metrics and report renderer.
// A nil registerer skips metrics.
func BuildPipeline(cfg *appconfig.Config, awsCfg aws.Config, reg prometheus.Registerer, logger *logging.Logger) *pipeline.Pipeline {
	opts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.FetchConcurrency),
		pipeline.WithRenderer(report.NewRenderer(report.WithLocation(cfg.Location()))),
	}
	if reg != nil {
		opts = append(opts, pipeline.WithMetrics(metrics.NewPipelineMetrics(reg)))
	}
	return pipeline.New(mainconfig.S3ClientFactory(awsCfg), logger, opts...)
}

// SaveConfig maps record storage settings to pipeline options.
func SaveConfig(cfg *appconfig.Config) pipeline.SaveConfig {
	return pipeline.SaveConfig{
		Bucket:    cfg.LogBucket,
		Region:    cfg.AWSRegion,
		KeyPrefix: cfg.LogKeyPrefix,
		FullLog:   cfg.LogFullLog,
		SlotMode:  logstore.ParseSlotMode(cfg.LogSlotMode),
	}
}

// ProcessConfig reads from LOG_DIRECTORY when set, otherwise from the log bucket.
func ProcessConfig(cfg *appconfig.Config) pipeline.ProcessConfig {
	if cfg.LogDirectory != "" {
		return pipeline.ProcessConfig{Directory: cfg.LogDirectory}
	}
	return pipeline.ProcessConfig{S3: &pipeline.S3Config{
		Bucket:    cfg.LogBucket,
		Region:    cfg.AWSRegion,
		KeyPrefix: cfg.LogKeyPrefix,
	}}
}
