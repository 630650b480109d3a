package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/goodchoice-relay/internal/dedup"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

var webhookTracer = otel.Tracer("goodchoice.internal.whatsapp")

const (
	maxWebhookBody = 1 << 20
	submitTimeout  = 10 * time.Second
)

// Dispatcher receives messages that passed deduplication. Submit must not
// block on generation work; the webhook has already been acknowledged.
type Dispatcher interface {
	Submit(ctx context.Context, msg InboundMessage) error
}

// WebhookConfig wires the webhook endpoint.
type WebhookConfig struct {
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 checks when set. A missing or
	// bad signature is answered with 401; every other POST is acked with 200.
	AppSecret  string
	Window     dedup.Window
	Dispatcher Dispatcher
	Metrics    *metrics.RelayMetrics
	Logger     *logging.Logger
}

// WebhookHandler handles WhatsApp webhook verification and inbound messages.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	window      dedup.Window
	dispatcher  Dispatcher
	metrics     *metrics.RelayMetrics
	logger      *logging.Logger
}

// NewWebhookHandler creates a webhook handler. The window is wrapped with
// fail-open semantics.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	if cfg.Dispatcher == nil {
		panic("whatsapp: dispatcher cannot be nil")
	}
	if cfg.Window == nil {
		panic("whatsapp: dedup window cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		window:      dedup.FailOpen(cfg.Window, logger),
		dispatcher:  cfg.Dispatcher,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// HandleVerification answers the GET subscription challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && h.verifyToken != "" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	h.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
	w.WriteHeader(http.StatusForbidden)
}

// HandleInbound acknowledges every delivery with 200 and hands the first
// new message to the dispatcher after the response is written.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, span := webhookTracer.Start(r.Context(), "whatsapp.webhook.inbound")
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		span.RecordError(err)
		h.logger.Warn("failed to read webhook body", "error", err)
		h.ack(w, started, "unreadable")
		return
	}

	if h.appSecret != "" && !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("invalid webhook signature")
		h.metrics.ObserveInbound("unauthorized")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	msg, ok := ParseInbound(body)
	if !ok {
		h.ack(w, started, "ignored")
		return
	}
	span.SetAttributes(
		attribute.String("goodchoice.whatsapp.message_id", msg.ID),
		attribute.String("goodchoice.whatsapp.kind", string(msg.Kind)),
	)

	if msg.ID != "" {
		claimed, _ := h.window.Claim(ctx, msg.ID)
		if !claimed {
			h.logger.Debug("duplicate webhook delivery dropped", "message_id", msg.ID)
			h.ack(w, started, "duplicate")
			return
		}
	}

	h.ack(w, started, "accepted")

	// The request context ends once the handler returns.
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()
	if err := h.dispatcher.Submit(dispatchCtx, msg); err != nil {
		span.RecordError(err)
		h.logger.Error("failed to submit inbound message", "error", err, "message_id", msg.ID)
	}
}

func (h *WebhookHandler) ack(w http.ResponseWriter, started time.Time, outcome string) {
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	h.metrics.ObserveInbound(outcome)
	h.metrics.ObserveWebhookLatency(time.Since(started).Seconds())
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>").
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}
	sigHex, ok := strings.CutPrefix(signature, "sha256=")
	if !ok || sigHex == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sigHex)))
}
