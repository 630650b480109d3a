package whatsapp

import (
	"context"

	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// Messenger adapts Client to the relay: each call records an outbound
// metric and logs failures with the recipient.
type Messenger struct {
	client  *Client
	metrics *metrics.RelayMetrics
	logger  *logging.Logger
}

// NewMessenger wraps client.
func NewMessenger(client *Client, m *metrics.RelayMetrics, logger *logging.Logger) *Messenger {
	if client == nil {
		panic("whatsapp: client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Messenger{client: client, metrics: m, logger: logger}
}

func (m *Messenger) SendText(ctx context.Context, to, body string) error {
	resp, err := m.client.SendText(ctx, to, body)
	return m.observe("text", to, resp, err)
}

func (m *Messenger) SendList(ctx context.Context, to string, list ListMenu) error {
	resp, err := m.client.SendList(ctx, to, list)
	return m.observe("list", to, resp, err)
}

func (m *Messenger) SendImage(ctx context.Context, to, mediaID, caption string) error {
	resp, err := m.client.SendImage(ctx, to, mediaID, caption)
	return m.observe("image", to, resp, err)
}

// UploadImage uploads generated image bytes and returns the media handle.
func (m *Messenger) UploadImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	id, err := m.client.UploadMedia(ctx, data, mimeType, "exhibit"+extensionFor(mimeType))
	m.metrics.ObserveOutbound("media", err)
	if err != nil {
		m.logger.Error("whatsapp media upload failed", "error", err, "mime_type", mimeType)
		return "", err
	}
	return id, nil
}

func (m *Messenger) observe(kind, to string, resp *SendResponse, err error) error {
	m.metrics.ObserveOutbound(kind, err)
	if err != nil {
		m.logger.Error("whatsapp send failed", "error", err, "kind", kind, "to", to)
		return err
	}
	m.logger.Debug("whatsapp message sent", "kind", kind, "to", to, "message_id", resp.MessageID())
	return nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
