package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/goodchoice-relay/internal/generator"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
)

type sentMessage struct {
	Kind    string
	To      string
	Body    string
	List    whatsapp.ListMenu
	MediaID string
	Caption string
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sentMessage
	uploads   [][]byte
	uploadErr error
	imageErr  error
	textErr   error
}

func (m *fakeMessenger) SendText(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.textErr != nil {
		return m.textErr
	}
	m.sent = append(m.sent, sentMessage{Kind: "text", To: to, Body: body})
	return nil
}

func (m *fakeMessenger) SendList(_ context.Context, to string, list whatsapp.ListMenu) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{Kind: "list", To: to, List: list})
	return nil
}

func (m *fakeMessenger) SendImage(_ context.Context, to, mediaID, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.imageErr != nil {
		return m.imageErr
	}
	m.sent = append(m.sent, sentMessage{Kind: "image", To: to, MediaID: mediaID, Caption: caption})
	return nil
}

func (m *fakeMessenger) UploadImage(_ context.Context, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.uploads = append(m.uploads, data)
	return "media-1", nil
}

func (m *fakeMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, req generator.Request) (generator.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return generator.Result{}, g.err
	}
	return generator.Result{Image: []byte("png"), MIMEType: "image/png", RefinedPrompt: "curated", Provider: "fake"}, nil
}

type fakeMedia struct {
	mu    sync.Mutex
	saves int
}

func (m *fakeMedia) Save(_ context.Context, prefix string, _ []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return "https://cdn.test/" + prefix + "/exhibit.png", nil
}

type recordingFulfiller struct {
	mu      sync.Mutex
	options []string
}

func (f *recordingFulfiller) Fulfill(_ context.Context, _ string, optionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options = append(f.options, optionID)
	return nil
}

var errBoom = errors.New("boom")
