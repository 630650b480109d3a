package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/goodchoice-relay/internal/artifacts"
	"github.com/wolfman30/goodchoice-relay/internal/dedup"
	"github.com/wolfman30/goodchoice-relay/internal/generator"
	"github.com/wolfman30/goodchoice-relay/internal/health"
	"github.com/wolfman30/goodchoice-relay/internal/media"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

type staticGenerator struct{}

func (staticGenerator) Generate(_ context.Context, req generator.Request) (generator.Result, error) {
	return generator.Result{Image: []byte("\x89PNG exhibit"), MIMEType: "image/png", RefinedPrompt: req.Prompt, Provider: "static"}, nil
}

type countingDispatcher struct {
	mu   sync.Mutex
	msgs []whatsapp.InboundMessage
}

func (d *countingDispatcher) Submit(_ context.Context, msg whatsapp.InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return nil
}

type testEnv struct {
	handler    http.Handler
	dispatcher *countingDispatcher
	uploadDir  string
}

func newTestEnv(t *testing.T, rateLimit float64, burst int) *testEnv {
	t.Helper()

	logger := logging.Default()
	uploadDir := t.TempDir()
	store, err := media.NewDiskStore(uploadDir, "", logger)
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewRelayMetrics(reg)

	svc := artifacts.NewService(artifacts.ServiceConfig{
		Repository:      artifacts.NewInMemoryRepository(),
		Generator:       staticGenerator{},
		Media:           store,
		FrontendBaseURL: "https://x.test",
		Metrics:         m,
		Logger:          logger,
	})
	dispatcher := &countingDispatcher{}
	webhook := whatsapp.NewWebhookHandler(whatsapp.WebhookConfig{
		VerifyToken: "verify-me",
		Window:      dedup.NewMemoryWindow(time.Minute),
		Dispatcher:  dispatcher,
		Metrics:     m,
		Logger:      logger,
	})

	h := New(&Config{
		Logger:             logger,
		Webhook:            webhook,
		Artifacts:          artifacts.NewHandler(svc, logger),
		Health:             health.NewHandler(nil, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		UploadDir:          uploadDir,
		CORSAllowedOrigins: []string{"https://viewer.example"},
		ArtifactRateLimit:  rateLimit,
		ArtifactRateBurst:  burst,
	})
	return &testEnv{handler: h, dispatcher: dispatcher, uploadDir: uploadDir}
}

func (e *testEnv) do(method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	rr := env.do(http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["server"] != "ok" || resp["db"] != "memory" {
		t.Errorf("unexpected health body %v", resp)
	}
}

func TestRouterWebhookVerification(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	rr := env.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil, nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "12345" {
		t.Fatalf("expected challenge echo, got %d %q", rr.Code, rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", nil, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRouterWebhookInbound(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"1555","id":"wamid.R1","timestamp":"1700000000","type":"text","text":{"body":"hi"}}]}}]}]}`

	for i := 0; i < 3; i++ {
		rr := env.do(http.MethodPost, "/webhook", strings.NewReader(payload), map[string]string{"Content-Type": "application/json"})
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rr.Code)
		}
	}

	env.dispatcher.mu.Lock()
	defer env.dispatcher.mu.Unlock()
	if len(env.dispatcher.msgs) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(env.dispatcher.msgs))
	}
	if env.dispatcher.msgs[0].Text != "hi" {
		t.Errorf("unexpected text %q", env.dispatcher.msgs[0].Text)
	}
}

func TestRouterArtifactRoundTripAndUploads(t *testing.T) {
	env := newTestEnv(t, 0, 0)

	rr := env.do(http.MethodPost, "/api/artifacts", bytes.NewBufferString(`{"prompt":"a red bicycle"}`),
		map[string]string{"Content-Type": "application/json"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var created artifacts.CreateResponse
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.Link != "https://x.test/?arId="+created.ArtifactID {
		t.Fatalf("unexpected link %q", created.Link)
	}

	rr = env.do(http.MethodGet, "/api/artifacts/"+created.ArtifactID, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", rr.Code)
	}
	var got artifacts.Artifact
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if got.UserPrompt != "a red bicycle" || got.Source != artifacts.SourceWeb {
		t.Fatalf("unexpected artifact %+v", got)
	}
	if !strings.HasPrefix(got.GeneratedImageURL, "/uploads/generated/") {
		t.Fatalf("expected disk url, got %q", got.GeneratedImageURL)
	}

	rr = env.do(http.MethodGet, got.GeneratedImageURL, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected stored image to be served, got %d", rr.Code)
	}
	if rr.Body.String() != "\x89PNG exhibit" {
		t.Fatalf("unexpected image body %q", rr.Body.String())
	}
}

func TestRouterArtifactNotFound(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	rr := env.do(http.MethodGet, "/api/artifacts/6f1c1b9e-8a4e-4f8e-9a55-2f2b8c1e0d11", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestRouterArtifactRateLimit(t *testing.T) {
	env := newTestEnv(t, 0.001, 1)
	headers := map[string]string{"Content-Type": "application/json"}

	first := env.do(http.MethodPost, "/api/artifacts", bytes.NewBufferString(`{"prompt":"tea"}`), headers)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first create to pass, got %d", first.Code)
	}
	second := env.do(http.MethodPost, "/api/artifacts", bytes.NewBufferString(`{"prompt":"tea"}`), headers)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}

	get := env.do(http.MethodGet, "/api/artifacts/6f1c1b9e-8a4e-4f8e-9a55-2f2b8c1e0d11", nil, nil)
	if get.Code == http.StatusTooManyRequests {
		t.Fatalf("reads must not be rate limited")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	rr := env.do(http.MethodOptions, "/api/artifacts", nil, map[string]string{
		"Origin":                        "https://viewer.example",
		"Access-Control-Request-Method": "POST",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://viewer.example" {
		t.Fatalf("missing allow origin header")
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0, 0)
	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"1555","id":"wamid.M1","type":"text","text":{"body":"hello"}}]}}]}]}`
	env.do(http.MethodPost, "/webhook", strings.NewReader(payload), nil)

	rr := env.do(http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "goodchoice_webhook_inbound_total") {
		t.Fatalf("expected webhook counter in exposition")
	}
}

func TestNewPanicsWithoutWebhook(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New(&Config{})
}
