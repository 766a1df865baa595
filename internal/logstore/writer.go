package logstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/observability/metrics"
	"github.com/gsdriver/alexa-logger/internal/record"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

// ErrMissingBucket is returned by Save when no bucket is configured.
var ErrMissingBucket = errors.New("logstore: missing bucket")

// SlotMode selects how slots are kept in a redacted record.
type SlotMode string

const (
	SlotModeRaw     SlotMode = "raw"
	SlotModeEncoded SlotMode = "encoded"
)

// ParseSlotMode maps a config string to a SlotMode, defaulting to raw.
func ParseSlotMode(s string) SlotMode {
	if SlotMode(s) == SlotModeEncoded {
		return SlotModeEncoded
	}
	return SlotModeRaw
}

// WriterConfig controls where and how records are written.
type WriterConfig struct {
	Bucket    string
	KeyPrefix string
	FullLog   bool
	SlotMode  SlotMode
}

// Writer persists one record per interaction under a timestamp key.
type Writer struct {
	client  PutAPI
	cfg     WriterConfig
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *metrics.PipelineMetrics
	now     func() time.Time
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithClock overrides the clock used to name keys.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// WithWriterMetrics records save outcomes.
func WithWriterMetrics(m *metrics.PipelineMetrics) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

// NewWriter builds a Writer around the given S3 client.
func NewWriter(client PutAPI, cfg WriterConfig, logger *logging.Logger, opts ...WriterOption) *Writer {
	if client == nil {
		panic("logstore: s3 client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Writer{
		client: client,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("alexa-logger/logstore"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Key returns the object key for a record written at t.
func Key(prefix string, t time.Time) string {
	return prefix + strconv.FormatInt(t.UnixMilli(), 10) + record.KeySuffix
}

// Save validates evt and writes it together with response.
func (w *Writer) Save(ctx context.Context, evt *alexa.Event, response any) (*s3.PutObjectOutput, error) {
	ctx, span := w.tracer.Start(ctx, "logstore.save")
	defer span.End()

	mode := "redacted"
	if w.cfg.FullLog {
		mode = "full"
	}

	out, err := w.save(ctx, evt, response)
	if err != nil {
		span.RecordError(err)
	}
	w.metrics.ObserveSave(mode, err)
	return out, err
}

func (w *Writer) save(ctx context.Context, evt *alexa.Event, response any) (*s3.PutObjectOutput, error) {
	if w.cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}
	if err := alexa.Validate(evt); err != nil {
		return nil, err
	}

	body, err := w.payload(evt, response)
	if err != nil {
		return nil, err
	}

	key := Key(w.cfg.KeyPrefix, w.now())
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("s3.key", key))

	out, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return nil, fmt.Errorf("logstore: s3 put %s: %w", key, err)
	}

	w.logger.Debug("saved interaction log",
		"key", key,
		"user_id", evt.UserID(),
		"session_id", evt.SessionID(),
		"request_type", evt.RequestType(),
	)
	return out, nil
}

func (w *Writer) payload(evt *alexa.Event, response any) ([]byte, error) {
	var (
		eventJSON []byte
		err       error
	)
	if w.cfg.FullLog {
		eventJSON, err = json.Marshal(evt)
	} else {
		eventJSON, err = json.Marshal(record.Redact(evt, w.cfg.SlotMode == SlotModeEncoded))
	}
	if err != nil {
		return nil, fmt.Errorf("logstore: marshal event: %w", err)
	}

	stored := record.Stored{Event: eventJSON}
	if response != nil {
		if stored.Response, err = json.Marshal(response); err != nil {
			return nil, fmt.Errorf("logstore: marshal response: %w", err)
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("logstore: marshal record: %w", err)
	}
	return data, nil
}
