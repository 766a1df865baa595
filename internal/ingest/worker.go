package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gsdriver/alexa-logger/internal/alexa"
	"github.com/gsdriver/alexa-logger/internal/pipeline"
	"github.com/gsdriver/alexa-logger/pkg/logging"
)

// Saver persists one interaction. *pipeline.Pipeline implements it.
type Saver interface {
	SaveLog(ctx context.Context, evt *alexa.Event, response any, cfg pipeline.SaveConfig) (*s3.PutObjectOutput, error)
}

var _ Saver = (*pipeline.Pipeline)(nil)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	defaultSaveTimeout   = 10 * time.Second
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	saveTimeout      time.Duration
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		cfg.receiveWaitSecs = min(seconds, maxWaitSeconds)
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size > 0 {
			cfg.receiveBatchSize = min(size, maxReceiveBatchSize)
		}
	}
}

// WithSaveTimeout bounds each save.
func WithSaveTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.saveTimeout = d
		}
	}
}

// Worker consumes queued payloads and saves them.
type Worker struct {
	saver  Saver
	queue  Queue
	save   pipeline.SaveConfig
	logger *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker builds a worker that saves every payload with save.
func NewWorker(saver Saver, queue Queue, save pipeline.SaveConfig, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if saver == nil {
		panic("ingest: saver cannot be nil")
	}
	if queue == nil {
		panic("ingest: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		saveTimeout:      defaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{saver: saver, queue: queue, save: save, logger: logger, cfg: cfg}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("ingest worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("ingest worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive ingest messages", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage deletes the message unless the failure could succeed on redelivery.
func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	var payload Payload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode ingest message", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	evt, response, err := payload.Decode()
	if err != nil {
		w.logger.Error("dropping ingest message", "error", err, "msg_id", msg.ID, "payload_id", payload.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, w.cfg.saveTimeout)
	defer cancel()

	if _, err := w.saver.SaveLog(saveCtx, evt, response, w.save); err != nil {
		if errors.Is(err, alexa.ErrValidation) {
			w.logger.Warn("dropping invalid interaction", "error", err, "msg_id", msg.ID, "payload_id", payload.ID)
			w.deleteMessage(context.Background(), msg.ReceiptHandle)
			return
		}
		w.logger.Error("failed to save interaction; leaving for redelivery", "error", err, "msg_id", msg.ID, "payload_id", payload.ID)
		return
	}

	w.logger.Debug("interaction saved", "msg_id", msg.ID, "payload_id", payload.ID, "user_id", evt.UserID())
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete ingest message", "error", err)
	}
}
