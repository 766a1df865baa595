package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/fetch"
	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/observability/metrics"
	"github.com/gsdriver/alexa-logger/internal/report"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// ClientFactory returns an S3 client bound to region.
type ClientFactory func(ctx context.Context, region string) (logstore.S3API, error)

// SaveConfig holds the options of SaveLog.
type SaveConfig struct {
	Bucket    string
	Region    string
	KeyPrefix string
	FullLog   bool
	SlotMode  logstore.SlotMode
}

// S3Config selects an S3 bucket as the report source.
type S3Config struct {
	Bucket    string
	Region    string
	KeyPrefix string
}

// ProcessConfig holds the options of ProcessLogs. Exactly one of Directory and
// S3 must be set.
type ProcessConfig struct {
	Directory string
	S3        *S3Config
	DateRange fetch.DateRange
	// FailurePolicy overrides the source's default policy.
	FailurePolicy fetch.Policy
}

// Summary describes a finished report run.
type Summary struct {
	// Last is the newest timestamp included in the report, nil if none was.
	Last     *int64 `json:"last,omitempty"`
	Records  int    `json:"records"`
	Skipped  int    `json:"skipped"`
	Filtered int    `json:"filtered"`

	// OldestSkipped is the oldest timestamp dropped under BestEffort.
	OldestSkipped *int64 `json:"oldest_skipped,omitempty"`
}

// Pipeline wires record writing and report generation together.
type Pipeline struct {
	newClient   ClientFactory
	logger      *logging.Logger
	metrics     *metrics.PipelineMetrics
	renderer    *report.Renderer
	concurrency int
	clock       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMetrics records save and report metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithRenderer overrides the report renderer.
func WithRenderer(r *report.Renderer) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.renderer = r
		}
	}
}

// WithConcurrency caps concurrent record reads.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

// WithClock overrides the clock used to name saved records.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.clock = now
		}
	}
}

// New builds a Pipeline. newClient is only called for S3 operations.
func New(newClient ClientFactory, logger *logging.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pipeline{
		newClient: newClient,
		logger:    logger,
		renderer:  report.NewRenderer(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SaveLog validates evt and writes it with response to cfg.Bucket.
func (p *Pipeline) SaveLog(ctx context.Context, evt *alexa.Event, response any, cfg SaveConfig) (*s3.PutObjectOutput, error) {
	if cfg.Bucket == "" {
		p.metrics.ObserveSave(saveMode(cfg), logstore.ErrMissingBucket)
		return nil, logstore.ErrMissingBucket
	}
	client, err := p.client(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}

	w := logstore.NewWriter(client, logstore.WriterConfig{
		Bucket:    cfg.Bucket,
		KeyPrefix: cfg.KeyPrefix,
		FullLog:   cfg.FullLog,
		SlotMode:  cfg.SlotMode,
	}, p.logger, logstore.WithClock(p.clock), logstore.WithWriterMetrics(p.metrics))
	return w.Save(ctx, evt, response)
}

// ProcessLogs fetches the records selected by cfg, renders the report and
// writes it to outputPath, replacing any existing file.
func (p *Pipeline) ProcessLogs(ctx context.Context, cfg ProcessConfig, outputPath string) (*Summary, error) {
	if outputPath == "" {
		return nil, ErrMissingParameters
	}

	src, err := p.source(ctx, cfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "source", src.Kind())
	start := time.Now()

	summary, err := p.process(ctx, src, cfg.DateRange, outputPath)
	p.metrics.ObserveReport(src.Kind(), time.Since(start).Seconds(), err)
	if err != nil {
		logger.Error("report run failed", "error", err)
		return nil, err
	}

	logger.Info("report written",
		"output", outputPath,
		"records", summary.Records,
		"skipped", summary.Skipped,
		"filtered", summary.Filtered,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

func (p *Pipeline) process(ctx context.Context, src fetch.Source, window fetch.DateRange, outputPath string) (*Summary, error) {
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("pipeline: remove %s: %w", outputPath, err)
	}

	fetcher := fetch.NewFetcher(p.logger, fetch.WithConcurrency(p.concurrency), fetch.WithMetrics(p.metrics))
	res, err := fetcher.Fetch(ctx, src, window)
	if err != nil {
		return nil, err
	}

	text := p.renderer.Aggregate(ctx, res.Records)
	if err := os.WriteFile(outputPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("pipeline: write %s: %w", outputPath, err)
	}

	return &Summary{
		Last:          res.Last,
		Records:       len(res.Records),
		Skipped:       res.Skipped,
		Filtered:      res.Filtered,
		OldestSkipped: res.OldestSkipped,
	}, nil
}

func (p *Pipeline) source(ctx context.Context, cfg ProcessConfig) (fetch.Source, error) {
	switch {
	case cfg.Directory != "" && cfg.S3 != nil:
		return nil, fmt.Errorf("%w: directory and s3 are mutually exclusive", ErrUnsupportedSource)
	case cfg.Directory != "":
		return fetch.DirSource{Dir: cfg.Directory, FailurePolicy: cfg.FailurePolicy}, nil
	case cfg.S3 != nil:
		if cfg.S3.Bucket == "" {
			return nil, ErrMissingParameters
		}
		client, err := p.client(ctx, cfg.S3.Region)
		if err != nil {
			return nil, err
		}
		return fetch.S3Source{
			Client:        client,
			Bucket:        cfg.S3.Bucket,
			Prefix:        cfg.S3.KeyPrefix,
			FailurePolicy: cfg.FailurePolicy,
		}, nil
	default:
		return nil, ErrUnsupportedSource
	}
}

func (p *Pipeline) client(ctx context.Context, region string) (logstore.S3API, error) {
	if p.newClient == nil {
		return nil, fmt.Errorf("%w: no s3 client configured", ErrConfig)
	}
	if region == "" {
		region = DefaultRegion
	}
	client, err := p.newClient(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("pipeline: s3 client for %s: %w", region, err)
	}
	return client, nil
}

func saveMode(cfg SaveConfig) string {
	if cfg.FullLog {
		return "full"
	}
	return "redacted"
}
