package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
)

type queueClient interface {
	Send(ctx context.Context, out outbound) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// outbound is one encoded job plus the keys FIFO queues require.
type outbound struct {
	Body    string
	GroupID string // sender
	DedupID string // WhatsApp message id, or the job id when absent
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	// Attempts is the broker's receive count; 1 on first delivery.
	Attempts int
}

// Job is the queued form of an accepted inbound message.
type Job struct {
	ID         string                  `json:"id"`
	Message    whatsapp.InboundMessage `json:"message"`
	EnqueuedAt time.Time               `json:"enqueued_at"`
}

func encodeJob(msg whatsapp.InboundMessage) (Job, string, error) {
	job := Job{
		ID:         uuid.NewString(),
		Message:    msg,
		EnqueuedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("relay: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("relay: failed to decode job: %w", err)
	}
	return job, nil
}
