package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// SQS caps long polls at 20s and batches at 10 messages.
const (
	maxPollWait  = 20 * time.Second
	maxPollBatch = 10

	deleteTimeout = 5 * time.Second
	minBackoff    = time.Second
	maxBackoff    = 5 * time.Second
)

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithWorkerCount sets how many goroutines poll the queue.
func WithWorkerCount(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithPolling sets the long-poll wait and the receive batch size. Values
// outside the broker limits are ignored.
func WithPolling(wait time.Duration, batch int) WorkerOption {
	return func(w *Worker) {
		if wait >= 0 && wait <= maxPollWait {
			w.pollWait = wait
		}
		if batch > 0 && batch <= maxPollBatch {
			w.pollBatch = batch
		}
	}
}

// WithJobTimeout bounds the handling of one job.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.jobTimeout = d
		}
	}
}

// WithWorkerMetrics records in-flight jobs.
func WithWorkerMetrics(m *metrics.RelayMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// Worker consumes queued jobs and hands each message to the handler. Jobs
// are deleted after one attempt whatever the outcome, and a redelivered job
// (a worker died mid-task or a delete was lost) is dropped unhandled, so a
// user never receives the same exhibit twice.
type Worker struct {
	handler MessageHandler
	queue   queueClient
	logger  *logging.Logger
	metrics *metrics.RelayMetrics

	concurrency int
	pollWait    time.Duration
	pollBatch   int
	jobTimeout  time.Duration

	wg sync.WaitGroup
}

func NewWorker(handler MessageHandler, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("relay: handler cannot be nil")
	}
	if queue == nil {
		panic("relay: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		handler:     handler,
		queue:       queue,
		logger:      logger,
		concurrency: 2,
		pollWait:    maxPollWait,
		pollBatch:   5,
		jobTimeout:  DefaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the polling goroutines; they exit when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(w.concurrency)
	for id := 1; id <= w.concurrency; id++ {
		go w.poll(ctx, id)
	}
}

// Wait blocks until every polling goroutine has exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) poll(ctx context.Context, id int) {
	defer w.wg.Done()
	logger := w.logger.With("worker_id", id)
	logger.Debug("relay worker started")
	defer logger.Debug("relay worker stopped")

	backoff := minBackoff
	for ctx.Err() == nil {
		batch, err := w.queue.Receive(ctx, w.pollBatch, int(w.pollWait/time.Second))
		switch {
		case err == nil:
			backoff = minBackoff
			for _, msg := range batch {
				w.handleMessage(ctx, msg)
			}
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			return
		default:
			logger.Error("failed to receive relay jobs", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	defer w.deleteMessage(context.WithoutCancel(ctx), msg.ReceiptHandle)

	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable relay job", "error", err, "queue_message_id", msg.ID)
		return
	}
	if msg.Attempts > 1 {
		w.logger.Warn("dropping redelivered relay job", "job_id", job.ID, "message_id", job.Message.ID,
			"attempts", msg.Attempts)
		return
	}

	w.metrics.TaskStarted()
	defer w.metrics.TaskFinished()

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("relay job panicked", "job_id", job.ID, "panic", fmt.Sprint(rec))
		}
	}()

	if err := w.handler(jobCtx, job.Message); err != nil {
		w.logger.Error("relay job failed", "error", err, "job_id", job.ID, "message_id", job.Message.ID)
		return
	}
	w.logger.Debug("relay job processed", "job_id", job.ID, "message_id", job.Message.ID,
		"queued_for", time.Since(job.EnqueuedAt).String())
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete relay job", "error", err)
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
