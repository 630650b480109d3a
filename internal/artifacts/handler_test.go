package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/goodchoice-relay/internal/generator"
)

type stubGenerator struct {
	mu    sync.Mutex
	calls []generator.Request
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, req generator.Request) (generator.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return generator.Result{}, g.err
	}
	return generator.Result{
		Image:         []byte("generated"),
		MIMEType:      "image/png",
		RefinedPrompt: "curated " + req.Prompt,
		Provider:      "stub",
	}, nil
}

type memoryMedia struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func (m *memoryMedia) Save(_ context.Context, prefix string, data []byte, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	url := "https://cdn.test/" + prefix + "/" + string(rune('a'+len(m.saved))) + ".png"
	m.saved[url] = data
	return url, nil
}

type fixture struct {
	repo   *InMemoryRepository
	gen    *stubGenerator
	media  *memoryMedia
	router chi.Router
}

func newFixture() *fixture {
	f := &fixture{repo: NewInMemoryRepository(), gen: &stubGenerator{}, media: &memoryMedia{}}
	svc := NewService(ServiceConfig{
		Repository:      f.repo,
		Generator:       f.gen,
		Media:           f.media,
		FrontendBaseURL: "https://x.test/",
	})
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Post("/api/artifacts", h.Create)
	r.Get("/api/artifacts/{id}", h.Get)
	f.router = r
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, prompt string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if prompt != "" {
		require.NoError(t, w.WriteField("prompt", prompt))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/artifacts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestCreateAndFetchRoundTrip(t *testing.T) {
	f := newFixture()

	rec := f.do(multipartRequest(t, "a red bicycle", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created CreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ArtifactID)
	assert.Equal(t, "https://x.test/?arId="+created.ArtifactID, created.Link)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/artifacts/"+created.ArtifactID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var artifact Artifact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &artifact))
	assert.Equal(t, "a red bicycle", artifact.UserPrompt)
	assert.Equal(t, SourceWeb, artifact.Source)
	assert.Equal(t, "curated a red bicycle", artifact.AIPrompt)
	assert.Equal(t, "stub", artifact.AIProvider)
	assert.True(t, strings.HasPrefix(artifact.GeneratedImageURL, "https://cdn.test/generated/"))
	assert.Empty(t, artifact.UserImageURL)
}

func TestCreateWithUploadedImage(t *testing.T) {
	f := newFixture()

	rec := f.do(multipartRequest(t, "make it cozy", []byte("\x89PNG\r\n\x1a\nrest")))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\nrest"), f.gen.calls[0].InputImage)
	assert.NotEmpty(t, f.gen.calls[0].InputMIME)

	var created CreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	artifact, err := f.repo.GetByID(context.Background(), created.ArtifactID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(artifact.UserImageURL, "https://cdn.test/user-uploads/"))
}

func TestCreateJSONBody(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/artifacts", strings.NewReader(`{"prompt":"drink water"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "drink water", f.gen.calls[0].Prompt)
}

func TestCreateMissingPrompt(t *testing.T) {
	f := newFixture()

	rec := f.do(multipartRequest(t, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Prompt is required"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/artifacts", strings.NewReader(`{"prompt":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	rec = f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, f.gen.calls)
}

func TestCreateGeneratorFailureIsGeneric500(t *testing.T) {
	f := newFixture()
	f.gen.err = errors.New("upstream secret detail")

	rec := f.do(multipartRequest(t, "a red bicycle", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "upstream secret detail")
	assert.Empty(t, f.media.saved)
	assert.Empty(t, f.repo.artifacts)
}

func TestGetStatuses(t *testing.T) {
	f := newFixture()

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/artifacts/6f1c2a8e-1d2b-4f5a-9c3d-0e1f2a3b4c5d", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Artifact not found"}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/artifacts/not-a-uuid", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServiceStorageFailureAbortsBeforePersist(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(ServiceConfig{
		Repository: repo,
		Generator:  &stubGenerator{},
		Media:      &memoryMedia{err: errors.New("disk full")},
	})
	_, err := svc.Create(context.Background(), CreateInput{Source: SourceWhatsApp, Prompt: "x"})
	require.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, repo.artifacts)
}
