package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// DefaultTaskTimeout bounds one background dispatch.
const DefaultTaskTimeout = 3 * time.Minute

// ErrRunnerClosed is returned by Submit after Shutdown has begun.
var ErrRunnerClosed = errors.New("relay: task runner is shut down")

// MessageHandler processes one accepted inbound message.
type MessageHandler func(ctx context.Context, msg whatsapp.InboundMessage) error

// TaskRunner runs each submitted message on its own goroutine, detached from
// the webhook request.
type TaskRunner struct {
	handler MessageHandler
	timeout time.Duration
	metrics *metrics.RelayMetrics
	logger  *logging.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewTaskRunner(handler MessageHandler, timeout time.Duration, m *metrics.RelayMetrics, logger *logging.Logger) *TaskRunner {
	if handler == nil {
		panic("relay: handler cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TaskRunner{handler: handler, timeout: timeout, metrics: m, logger: logger}
}

// Submit starts msg in the background and returns immediately.
func (r *TaskRunner) Submit(ctx context.Context, msg whatsapp.InboundMessage) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(context.WithoutCancel(ctx), msg)
	return nil
}

func (r *TaskRunner) run(parent context.Context, msg whatsapp.InboundMessage) {
	defer r.wg.Done()
	r.metrics.TaskStarted()
	defer r.metrics.TaskFinished()

	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	logger := r.logger.With("message_id", msg.ID, "from", msg.From)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		logger = logger.With("trace_id", sc.TraceID().String())
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("relay task panicked", "panic", fmt.Sprint(rec))
		}
	}()

	if err := r.handler(ctx, msg); err != nil {
		logger.Error("relay task failed", "error", err)
	}
}

// Wait blocks until every submitted task has finished.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}

// Shutdown rejects new tasks and waits for running ones until ctx is done.
func (r *TaskRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
