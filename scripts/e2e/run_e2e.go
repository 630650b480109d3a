// Package main runs smoke scenarios against a running relay.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 VERIFY_TOKEN=... go run scripts/e2e/run_e2e.go [scenario-name]
//
// WHATSAPP_APP_SECRET must match the server when signature checks are enabled.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/goodchoice-relay/internal/artifacts"
	"github.com/wolfman30/goodchoice-relay/internal/health"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
)

const testSender = "15005550002"

var (
	apiBase     string
	verifyToken string
	appSecret   string
	client      = &http.Client{Timeout: 2 * time.Minute}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

func textEvent(id, body string) whatsapp.WebhookEvent {
	return envelope(whatsapp.Message{
		From:      testSender,
		ID:        id,
		Timestamp: strconv.FormatInt(time.Now().Unix(), 10),
		Type:      "text",
		Text:      &whatsapp.TextBody{Body: body},
	})
}

func listReplyEvent(id, rowID string) whatsapp.WebhookEvent {
	return envelope(whatsapp.Message{
		From:      testSender,
		ID:        id,
		Timestamp: strconv.FormatInt(time.Now().Unix(), 10),
		Type:      "interactive",
		Interactive: &whatsapp.Interactive{
			Type:      "list_reply",
			ListReply: &whatsapp.Reply{ID: rowID},
		},
	})
}

func envelope(msgs ...whatsapp.Message) whatsapp.WebhookEvent {
	return whatsapp.WebhookEvent{
		Object: "whatsapp_business_account",
		Entry: []whatsapp.Entry{{
			ID: "e2e",
			Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.ChangeValue{MessagingProduct: "whatsapp", Messages: msgs},
			}},
		}},
	}
}

func postWebhook(event whatsapp.WebhookEvent) (int, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, apiBase+"/webhook", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if appSecret != "" {
		mac := hmac.New(sha256.New, []byte(appSecret))
		mac.Write(body)
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func getJSON(path string, out interface{}) (int, error) {
	resp, err := client.Get(apiBase + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func messageID() string {
	return "wamid.e2e-" + uuid.NewString()
}

func scenarioHealth(t *T) {
	var resp health.Response
	status, err := getJSON("/health", &resp)
	if err != nil {
		t.fatalf("health request: %v", err)
		return
	}
	t.check("health returns 200", status == http.StatusOK)
	t.check("server reports ok", resp.Server == "ok")
	t.check("db state reported", resp.DB != "")
}

func scenarioVerification(t *T) {
	q := url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {verifyToken},
		"hub.challenge":    {"e2e-challenge"},
	}
	resp, err := client.Get(apiBase + "/webhook?" + q.Encode())
	if err != nil {
		t.fatalf("verification request: %v", err)
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	t.check("verification returns 200", resp.StatusCode == http.StatusOK)
	t.check("challenge echoed", string(body) == "e2e-challenge")

	q.Set("hub.verify_token", "wrong")
	bad, err := client.Get(apiBase + "/webhook?" + q.Encode())
	if err != nil {
		t.fatalf("verification request: %v", err)
		return
	}
	bad.Body.Close()
	t.check("wrong token rejected", bad.StatusCode == http.StatusForbidden)
}

func scenarioConversation(t *T) {
	steps := []struct {
		name  string
		event whatsapp.WebhookEvent
	}{
		{"greeting acknowledged", textEvent(messageID(), "Hello")},
		{"category acknowledged", listReplyEvent(messageID(), "CAT_FITNESS")},
		{"option acknowledged", listReplyEvent(messageID(), "OPT_WALK")},
	}
	for _, step := range steps {
		status, err := postWebhook(step.event)
		if err != nil {
			t.fatalf("%s: %v", step.name, err)
			return
		}
		t.check(step.name, status == http.StatusOK)
	}
}

func scenarioDuplicateDelivery(t *T) {
	event := textEvent(messageID(), "hi")
	for i := 0; i < 3; i++ {
		status, err := postWebhook(event)
		if err != nil {
			t.fatalf("delivery %d: %v", i, err)
			return
		}
		t.check(fmt.Sprintf("delivery %d acknowledged", i+1), status == http.StatusOK)
	}
}

func scenarioStatusCallback(t *T) {
	status, err := postWebhook(envelope())
	if err != nil {
		t.fatalf("status callback: %v", err)
		return
	}
	t.check("message-less payload acknowledged", status == http.StatusOK)
}

func scenarioArtifact(t *T) {
	body, _ := json.Marshal(map[string]string{"prompt": "Walking for fitness"})
	resp, err := client.Post(apiBase+"/api/artifacts", "application/json", bytes.NewReader(body))
	if err != nil {
		t.fatalf("create artifact: %v", err)
		return
	}
	defer resp.Body.Close()
	t.check("create returns 200", resp.StatusCode == http.StatusOK)
	var created artifacts.CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.fatalf("decode create response: %v", err)
		return
	}
	t.check("artifact id returned", created.ArtifactID != "")
	t.check("viewer link returned", created.Link != "")

	var got artifacts.Artifact
	status, err := getJSON("/api/artifacts/"+created.ArtifactID, &got)
	if err != nil {
		t.fatalf("fetch artifact: %v", err)
		return
	}
	t.check("fetch returns 200", status == http.StatusOK)
	t.check("prompt stored", got.UserPrompt == "Walking for fitness")
	t.check("generated image stored", got.GeneratedImageURL != "")

	status, _ = getJSON("/api/artifacts/"+uuid.NewString(), nil)
	t.check("unknown id returns 404", status == http.StatusNotFound)
}

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	verifyToken = os.Getenv("VERIFY_TOKEN")
	appSecret = os.Getenv("WHATSAPP_APP_SECRET")
	if apiBase == "" || verifyToken == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL and VERIFY_TOKEN required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"health", scenarioHealth},
		{"verification", scenarioVerification},
		{"conversation", scenarioConversation},
		{"duplicate-delivery", scenarioDuplicateDelivery},
		{"status-callback", scenarioStatusCallback},
		{"artifact", scenarioArtifact},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed, totalFailed := 0, 0
	results := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}
		fmt.Printf("\nSCENARIO: %s\n", s.Name)

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed
		status := "ok"
		if t.failed > 0 {
			status = "FAILED"
		}
		results = append(results, fmt.Sprintf("  %-20s %s (%d passed, %d failed)", t.name, status, t.passed, t.failed))
	}

	fmt.Println("\nSUMMARY")
	for _, r := range results {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
