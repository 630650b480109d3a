package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/goodchoice-relay/internal/config"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/internal/relay"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// Received SQS jobs stay hidden this long past the task timeout.
const visibilityMargin = time.Minute

// Dispatch is the webhook's task sink plus a way to drain it at shutdown.
type Dispatch struct {
	Dispatcher whatsapp.Dispatcher
	Mode       string
	drain      func(ctx context.Context) error
}

// Drain stops accepting work and waits for in-flight tasks until ctx ends.
func (d *Dispatch) Drain(ctx context.Context) error {
	if d == nil || d.drain == nil {
		return nil
	}
	return d.drain(ctx)
}

// BuildDispatcher selects CONVERSATION_QUEUE: inline runs each message on
// its own goroutine, memory and sqs hand messages to queue workers.
func BuildDispatcher(ctx context.Context, cfg *appconfig.Config, handler relay.MessageHandler, loadAWS AWSConfigLoader, m *metrics.RelayMetrics, logger *logging.Logger) (*Dispatch, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("bootstrap: message handler is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	mode := strings.TrimSpace(cfg.ConversationQueue)
	switch mode {
	case "", "inline":
		runner := relay.NewTaskRunner(handler, cfg.TaskTimeout, m, logger)
		logger.Info("relay tasks run inline", "timeout", cfg.TaskTimeout.String())
		return &Dispatch{Dispatcher: runner, Mode: "inline", drain: runner.Shutdown}, nil
	case "memory":
		queue := relay.NewMemoryQueue(0)
		worker := relay.NewWorker(handler, queue, logger, workerOptions(cfg, m)...)
		return startQueueWorkers(ctx, "memory", worker, relay.NewPublisher(queue, logger), cfg.WorkerCount, logger), nil
	case "sqs":
		if strings.TrimSpace(cfg.ConversationQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: CONVERSATION_QUEUE=sqs requires CONVERSATION_QUEUE_URL")
		}
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: CONVERSATION_QUEUE=sqs requires AWS config")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		queue := relay.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL,
			relay.WithVisibilityTimeout(cfg.TaskTimeout+visibilityMargin))
		worker := relay.NewWorker(handler, queue, logger, workerOptions(cfg, m)...)
		return startQueueWorkers(ctx, "sqs", worker, relay.NewPublisher(queue, logger), cfg.WorkerCount, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown CONVERSATION_QUEUE %q", cfg.ConversationQueue)
	}
}

func workerOptions(cfg *appconfig.Config, m *metrics.RelayMetrics) []relay.WorkerOption {
	return []relay.WorkerOption{
		relay.WithWorkerCount(cfg.WorkerCount),
		relay.WithJobTimeout(cfg.TaskTimeout),
		relay.WithWorkerMetrics(m),
	}
}

func startQueueWorkers(ctx context.Context, mode string, worker *relay.Worker, publisher *relay.Publisher, workers int, logger *logging.Logger) *Dispatch {
	workerCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	worker.Start(workerCtx)
	logger.Info("relay workers started", "queue", mode, "workers", workers)

	drain := func(ctx context.Context) error {
		stop()
		done := make(chan struct{})
		go func() {
			worker.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return &Dispatch{Dispatcher: publisher, Mode: mode, drain: drain}
}
