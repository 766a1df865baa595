package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gsdriver/alexa-logger/internal/checkpoint"
)

// Incremental runs reports that only cover records newer than the previous run.
type Incremental struct {
	pipeline  *Pipeline
	store     checkpoint.Store
	name      string
	cfg       ProcessConfig
	outputDir string
}

// NewIncremental builds an incremental runner. A nil store makes every run a full run.
func NewIncremental(p *Pipeline, store checkpoint.Store, name string, cfg ProcessConfig, outputDir string) *Incremental {
	return &Incremental{pipeline: p, store: store, name: name, cfg: cfg, outputDir: outputDir}
}

// Run writes report-<millis>.csv to the output directory covering records after
// the stored checkpoint, then advances the checkpoint. Records dropped under
// BestEffort hold the checkpoint below them so the next run retries them.
func (r *Incremental) Run(ctx context.Context) (*Summary, string, error) {
	cfg := r.cfg
	if r.store != nil {
		last, err := r.store.Load(ctx, r.name)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
		case err != nil:
			return nil, "", err
		case cfg.DateRange.Start == nil || *cfg.DateRange.Start < last:
			cfg.DateRange.Start = &last
		}
	}

	out, err := r.outputPath()
	if err != nil {
		return nil, "", err
	}
	summary, err := r.pipeline.ProcessLogs(ctx, cfg, out)
	if err != nil {
		return nil, "", err
	}

	if r.store == nil {
		return summary, out, nil
	}
	next, ok := nextCheckpoint(cfg.DateRange.Start, summary)
	if !ok {
		return summary, out, nil
	}
	if err := r.store.Save(ctx, r.name, next); err != nil {
		return summary, out, fmt.Errorf("pipeline: report written but checkpoint not saved: %w", err)
	}
	return summary, out, nil
}

// outputPath names the report after the run's start time, adding a counter
// when a report with that name already exists.
func (r *Incremental) outputPath() (string, error) {
	base := "report-" + strconv.FormatInt(r.pipeline.clock().UnixMilli(), 10)
	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name += "-" + strconv.Itoa(n)
		}
		path := filepath.Join(r.outputDir, name+".csv")
		_, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return path, nil
		case err != nil:
			return "", fmt.Errorf("pipeline: stat %s: %w", path, err)
		}
	}
}

// nextCheckpoint returns the newest timestamp the next run may start after.
// ok is false when the checkpoint should stay where it is.
func nextCheckpoint(start *int64, summary *Summary) (int64, bool) {
	if summary.Last == nil {
		return 0, false
	}
	next := *summary.Last
	if summary.OldestSkipped != nil && *summary.OldestSkipped-1 < next {
		next = *summary.OldestSkipped - 1
	}
	if start != nil && next <= *start {
		return 0, false
	}
	return next, true
}
