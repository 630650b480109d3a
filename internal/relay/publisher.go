package relay

import (
	"context"
	"fmt"

	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// Publisher enqueues accepted messages for a Worker. It satisfies the
// webhook's Dispatcher.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("relay: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Submit publishes msg as a Job.
func (p *Publisher) Submit(ctx context.Context, msg whatsapp.InboundMessage) error {
	job, body, err := encodeJob(msg)
	if err != nil {
		return err
	}
	out := outbound{Body: body, GroupID: msg.From, DedupID: msg.ID}
	if out.DedupID == "" {
		out.DedupID = job.ID
	}
	if err := p.queue.Send(ctx, out); err != nil {
		return fmt.Errorf("relay: failed to enqueue job: %w", err)
	}
	p.logger.Debug("relay job enqueued", "job_id", job.ID, "message_id", msg.ID)
	return nil
}
