package fetch

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gsdriver/alexa-logger/internal/observability/metrics"
	"github.com/gsdriver/alexa-logger/internal/record"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

const defaultConcurrency = 16

// DateRange bounds a fetch by epoch millis. Both bounds are exclusive and optional.
type DateRange struct {
	Start *int64
	End   *int64
}

// Contains reports whether ts lies strictly inside the range.
func (r DateRange) Contains(ts int64) bool {
	if r.Start != nil && ts <= *r.Start {
		return false
	}
	if r.End != nil && ts >= *r.End {
		return false
	}
	return true
}

// ReadError is returned when a record cannot be read or decoded.
type ReadError struct {
	Key string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("fetch: read %s: %v", e.Key, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Result is the outcome of a fetch. Records are sorted newest first.
type Result struct {
	Records []*record.Fetched
	// Last is the newest record's timestamp, nil when no record survived.
	Last *int64
	// Skipped counts records dropped under BestEffort.
	Skipped int
	// OldestSkipped is the oldest dropped record's timestamp, nil when none was dropped.
	OldestSkipped *int64
	// Filtered counts records outside the date range. They are never read.
	Filtered int
	// Ignored counts listed names that do not carry a timestamp.
	Ignored int
}

// Fetcher reads every record of a source concurrently.
type Fetcher struct {
	logger      *logging.Logger
	tracer      trace.Tracer
	metrics     *metrics.PipelineMetrics
	concurrency int
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithConcurrency caps the number of reads in flight.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithMetrics records per-outcome record counts.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

func NewFetcher(logger *logging.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = logging.Default()
	}
	f := &Fetcher{
		logger:      logger,
		tracer:      otel.Tracer("alexa-logger/fetch"),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch lists src, reads every entry inside window and returns the decoded
// records. Entries outside the window are not read. Whether a failed read
// aborts the fetch depends on src.Policy().
func (f *Fetcher) Fetch(ctx context.Context, src Source, window DateRange) (*Result, error) {
	ctx, span := f.tracer.Start(ctx, "fetch.records", trace.WithAttributes(
		attribute.String("source", src.Kind()),
		attribute.String("policy", src.Policy().String()),
	))
	defer span.End()

	entries, ignored, err := src.Entries(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if ignored > 0 {
		f.logger.Debug("ignored entries without a timestamp", "source", src.Kind(), "count", ignored)
	}

	var (
		mu            sync.Mutex
		records       = make([]*record.Fetched, 0, len(entries))
		skipped       int
		oldestSkipped *int64
	)
	policy := src.Policy()
	filtered := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, entry := range entries {
		if !window.Contains(entry.Timestamp) {
			filtered++
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			rec, err := readEntry(gctx, src, entry)
			if err != nil {
				if policy == FailFast {
					return err
				}
				f.logger.Warn("dropping unreadable record", "source", src.Kind(), "key", entry.Key, "error", err)
				mu.Lock()
				skipped++
				if oldestSkipped == nil || entry.Timestamp < *oldestSkipped {
					ts := entry.Timestamp
					oldestSkipped = &ts
				}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b *record.Fetched) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	res := &Result{Records: records, Skipped: skipped, OldestSkipped: oldestSkipped, Filtered: filtered, Ignored: ignored}
	if len(records) > 0 {
		last := records[0].Timestamp
		res.Last = &last
	}

	f.metrics.ObserveRecords(src.Kind(), "kept", len(records))
	f.metrics.ObserveRecords(src.Kind(), "skipped", skipped)
	f.metrics.ObserveRecords(src.Kind(), "filtered", filtered)
	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("skipped", skipped),
		attribute.Int("filtered", filtered),
	)
	return res, nil
}

func readEntry(ctx context.Context, src Source, entry Entry) (*record.Fetched, error) {
	data, err := src.Read(ctx, entry.Key)
	if err != nil {
		return nil, &ReadError{Key: entry.Key, Err: err}
	}
	rec, err := record.Decode(entry.Key, entry.Timestamp, data)
	if err != nil {
		return nil, &ReadError{Key: entry.Key, Err: err}
	}
	return rec, nil
}
