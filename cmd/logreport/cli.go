package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/gsdriver/alexa-logger/cmd/mainconfig"
	appconfig "github.com/gsdriver/alexa-logger/internal/config"
	"github.com/gsdriver/alexa-logger/internal/fetch"
	"github.com/gsdriver/alexa-logger/internal/ingest"
	"github.com/gsdriver/alexa-logger/internal/logstore"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/internal/report"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

// pipelineFactory builds the pipeline once flags are parsed.
type pipelineFactory func(ctx context.Context, logger *logging.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error)

func awsPipeline(ctx context.Context, logger *logging.Logger, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	cfg := appconfig.Load()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return pipeline.New(mainconfig.S3ClientFactory(awsCfg), logger, opts...), nil
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

func (g *globalFlags) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &g.logLevel,
			Sources:     cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (json, text)",
			Value:       "text",
			Destination: &g.logFormat,
			Sources:     cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// run executes the app and reports a failure on stderr, since errors raised
// before the pipeline logs anything would otherwise exit silently.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, stdin io.Reader, build pipelineFactory) error {
	if err := newApp(stdout, stderr, stdin, build).Run(ctx, args); err != nil {
		logging.NewWithWriter(stderr, "error", "text").Error("failed to run app", "error", err)
		return err
	}
	return nil
}

func newApp(stdout, stderr io.Writer, stdin io.Reader, build pipelineFactory) *cli.Command {
	var global globalFlags
	var logger *logging.Logger

	return &cli.Command{
		Name:      "logreport",
		Usage:     "Store Alexa interaction logs and build transcript reports",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     global.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger = logging.NewWithWriter(stderr, global.logLevel, global.logFormat)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdProcess(stdout, build, func() *logging.Logger { return logger }),
			cmdSave(stdin, build, func() *logging.Logger { return logger }),
		},
	}
}

func cmdProcess(stdout io.Writer, build pipelineFactory, logger func() *logging.Logger) *cli.Command {
	var (
		dir, bucket, region, prefix string
		output, policy, timezone    string
		start, end                  int64
		concurrency                 int64
	)

	return &cli.Command{
		Name:    "process",
		Aliases: []string{"p"},
		Usage:   "Build a transcript report from a directory or an S3 bucket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Directory of stored records", Destination: &dir, Sources: cli.EnvVars("LOG_DIRECTORY")},
			&cli.StringFlag{Name: "bucket", Usage: "S3 bucket of stored records", Destination: &bucket},
			&cli.StringFlag{Name: "region", Usage: "S3 region", Value: pipeline.DefaultRegion, Destination: &region, Sources: cli.EnvVars("AWS_REGION")},
			&cli.StringFlag{Name: "prefix", Usage: "S3 key prefix", Destination: &prefix, Sources: cli.EnvVars("LOG_KEY_PREFIX")},
			&cli.Int64Flag{Name: "start", Usage: "Only records after this epoch-millisecond timestamp", Destination: &start},
			&cli.Int64Flag{Name: "end", Usage: "Only records before this epoch-millisecond timestamp", Destination: &end},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Report file", Value: "summary.csv", Destination: &output, Sources: cli.EnvVars("REPORT_OUTPUT")},
			&cli.StringFlag{Name: "on-error", Usage: "fail-fast or best-effort (default depends on the source)", Destination: &policy},
			&cli.StringFlag{Name: "timezone", Usage: "IANA zone for report timestamps", Value: "Local", Destination: &timezone, Sources: cli.EnvVars("REPORT_TIMEZONE")},
			&cli.Int64Flag{Name: "concurrency", Usage: "Concurrent record reads", Value: 16, Destination: &concurrency, Sources: cli.EnvVars("FETCH_CONCURRENCY")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			failurePolicy, err := fetch.ParsePolicy(policy)
			if err != nil {
				return err
			}
			loc := time.Local
			if timezone != "" && timezone != "Local" {
				if loc, err = time.LoadLocation(timezone); err != nil {
					return fmt.Errorf("invalid timezone %q: %w", timezone, err)
				}
			}

			cfg := pipeline.ProcessConfig{Directory: dir, FailurePolicy: failurePolicy}
			if bucket != "" {
				cfg.S3 = &pipeline.S3Config{Bucket: bucket, Region: region, KeyPrefix: prefix}
			}
			if c.IsSet("start") {
				cfg.DateRange.Start = &start
			}
			if c.IsSet("end") {
				cfg.DateRange.End = &end
			}

			p, err := build(ctx, logger(),
				pipeline.WithConcurrency(int(concurrency)),
				pipeline.WithRenderer(report.NewRenderer(report.WithLocation(loc))),
			)
			if err != nil {
				return err
			}
			summary, err := p.ProcessLogs(ctx, cfg, output)
			if err != nil {
				return err
			}
			return printJSON(stdout, summary)
		},
	}
}

func cmdSave(stdin io.Reader, build pipelineFactory, logger func() *logging.Logger) *cli.Command {
	var (
		bucket, region, prefix, slotMode, file string
		full                                   bool
	)

	return &cli.Command{
		Name:  "save",
		Usage: "Store one {event, response} document read from a file or stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bucket", Usage: "S3 bucket", Destination: &bucket, Sources: cli.EnvVars("LOG_BUCKET")},
			&cli.StringFlag{Name: "region", Usage: "S3 region", Value: pipeline.DefaultRegion, Destination: &region, Sources: cli.EnvVars("AWS_REGION")},
			&cli.StringFlag{Name: "prefix", Usage: "S3 key prefix", Destination: &prefix, Sources: cli.EnvVars("LOG_KEY_PREFIX")},
			&cli.BoolFlag{Name: "full", Usage: "Store the complete event", Destination: &full, Sources: cli.EnvVars("LOG_FULL")},
			&cli.StringFlag{Name: "slot-mode", Usage: "raw or encoded", Value: string(logstore.SlotModeRaw), Destination: &slotMode, Sources: cli.EnvVars("LOG_SLOT_MODE")},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Payload file, - for stdin", Value: "-", Destination: &file},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			data, err := readInput(file, stdin)
			if err != nil {
				return err
			}
			var payload ingest.Payload
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
			evt, response, err := payload.Decode()
			if err != nil {
				return err
			}

			p, err := build(ctx, logger())
			if err != nil {
				return err
			}
			_, err = p.SaveLog(ctx, evt, response, pipeline.SaveConfig{
				Bucket:    bucket,
				Region:    region,
				KeyPrefix: prefix,
				FullLog:   full,
				SlotMode:  logstore.ParseSlotMode(slotMode),
			})
			return err
		},
	}
}

func readInput(file string, stdin io.Reader) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
