package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/goodchoice-relay/internal/dedup"
	"github.com/wolfman30/goodchoice-relay/internal/menu"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []InboundMessage
	err      error
}

func (d *recordingDispatcher) Submit(_ context.Context, msg InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

type brokenWindow struct{}

func (brokenWindow) Seen(context.Context, string) (bool, error) { return false, errors.New("down") }
func (brokenWindow) Record(context.Context, string) error       { return errors.New("down") }
func (brokenWindow) Claim(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

const textPayload = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","metadata":{"phone_number_id":"12345"},"messages":[{"from":"15550001111","id":"wamid.A","timestamp":"1700000000","type":"text","text":{"body":"  Hi "}}]}}]}]}`

const listReplyPayload = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messages":[{"from":"15550001111","id":"wamid.B","timestamp":"1700000001","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"OPT_walk","title":"Walk"}}}]}}]}]}`

const statusPayload = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"statuses":[{"id":"wamid.S","status":"delivered"}]}}]}]}`

func newTestWebhook(d Dispatcher, w dedup.Window, secret string) *WebhookHandler {
	return NewWebhookHandler(WebhookConfig{
		VerifyToken: "verify-me",
		AppSecret:   secret,
		Window:      w,
		Dispatcher:  d,
	})
}

func post(h *WebhookHandler, body string, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)
	return rec
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestHandleVerification(t *testing.T) {
	h := newTestWebhook(&recordingDispatcher{}, dedup.NewMemoryWindow(time.Minute), "")

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"valid challenge", "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=X", http.StatusOK, "X"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=X", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=X", http.StatusForbidden, ""},
		{"missing params", "", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.HandleVerification(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if rec.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestHandleInboundDispatchesTextOnce(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestWebhook(d, dedup.NewMemoryWindow(time.Minute), "")

	for i := 0; i < 3; i++ {
		if rec := post(h, textPayload, ""); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status %d", i, rec.Code)
		}
	}
	if d.count() != 1 {
		t.Fatalf("expected one dispatch, got %d", d.count())
	}
	msg := d.messages[0]
	if msg.ID != "wamid.A" || msg.From != "15550001111" || msg.Kind != KindText || msg.Text != "hi" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.Timestamp.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("timestamp = %v", msg.Timestamp)
	}
}

func TestHandleInboundConcurrentDuplicates(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestWebhook(d, dedup.NewMemoryWindow(time.Minute), "")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			post(h, listReplyPayload, "")
		}()
	}
	wg.Wait()
	if d.count() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", d.count())
	}
	sel := d.messages[0].Selection
	if d.messages[0].Kind != KindInteractive || sel.Tag != menu.TagOption || sel.ID != "OPT_walk" {
		t.Fatalf("unexpected selection %+v", d.messages[0])
	}
}

func TestHandleInboundAcknowledgesNonMessages(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestWebhook(d, dedup.NewMemoryWindow(time.Minute), "")

	for _, body := range []string{statusPayload, `not json`, `{}`, `{"entry":[]}`} {
		if rec := post(h, body, ""); rec.Code != http.StatusOK {
			t.Fatalf("body %q: status %d", body, rec.Code)
		}
	}
	if d.count() != 0 {
		t.Fatalf("expected no dispatch, got %d", d.count())
	}
}

func TestHandleInboundFailsOpenWhenWindowBroken(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestWebhook(d, brokenWindow{}, "")

	if rec := post(h, textPayload, ""); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if d.count() != 1 {
		t.Fatalf("expected dispatch despite window failure, got %d", d.count())
	}
}

func TestHandleInboundSubmitErrorStillAcknowledged(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("queue full")}
	h := newTestWebhook(d, dedup.NewMemoryWindow(time.Minute), "")
	if rec := post(h, textPayload, ""); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHandleInboundSignature(t *testing.T) {
	const secret = "app-secret"
	d := &recordingDispatcher{}
	h := newTestWebhook(d, dedup.NewMemoryWindow(time.Minute), secret)

	if rec := post(h, textPayload, "sha256=deadbeef"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: status %d", rec.Code)
	}
	if rec := post(h, textPayload, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: status %d", rec.Code)
	}
	if rec := post(h, textPayload, sign(secret, textPayload)); rec.Code != http.StatusOK {
		t.Fatalf("valid signature: status %d", rec.Code)
	}
	if d.count() != 1 {
		t.Fatalf("expected one dispatch, got %d", d.count())
	}
}

func TestHandleInboundWithoutSecretAlwaysAcks(t *testing.T) {
	d := &recordingDispatcher{}
	h := newTestWebhook(d, dedup.NewMemoryWindow(time.Minute), "")

	if rec := post(h, textPayload, "sha256=deadbeef"); rec.Code != http.StatusOK {
		t.Fatalf("unsigned mode: status %d", rec.Code)
	}
	if d.count() != 1 {
		t.Fatalf("expected one dispatch, got %d", d.count())
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	valid := sign("s", string(body))

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid signature", "s", body, valid, true},
		{"empty signature", "s", body, "", false},
		{"empty secret", "", body, valid, false},
		{"missing prefix", "s", body, "abcdef", false},
		{"tampered body", "s", []byte("tampered"), valid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, tt.body, tt.signature); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseInboundButtonReplyAndUnknownKinds(t *testing.T) {
	button := `{"entry":[{"changes":[{"value":{"messages":[{"from":"1","id":"wamid.C","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"CAT_HEALTH","title":"Health"}}}]}}]}]}`
	msg, ok := ParseInbound([]byte(button))
	if !ok || msg.Kind != KindInteractive || msg.Selection.Tag != menu.TagCategory {
		t.Fatalf("unexpected %+v ok=%v", msg, ok)
	}

	image := `{"entry":[{"changes":[{"value":{"messages":[{"from":"1","id":"wamid.D","type":"image"}]}}]}]}`
	msg, ok = ParseInbound([]byte(image))
	if !ok || msg.Kind != KindOther {
		t.Fatalf("unexpected %+v ok=%v", msg, ok)
	}
}
