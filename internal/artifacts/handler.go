package artifacts

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

const (
	maxUploadBytes = 10 << 20
	maxJSONBytes   = 64 << 10
)

// Handler serves the artifact web API.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new artifacts handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("artifacts: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	Prompt string `json:"prompt"`
}

// Create handles POST /api/artifacts. It accepts multipart form data with a
// prompt field and optional image file, or a JSON {"prompt": ...} body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	in := CreateInput{Source: SourceWeb}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json":
		var req createRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(&req); err != nil {
			h.logger.Warn("failed to decode artifact request", "error", err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
			return
		}
		in.Prompt = req.Prompt
	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if strings.HasPrefix(mediaType, "multipart/") {
			if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
				h.logger.Warn("failed to parse multipart form", "error", err)
				writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid form data"})
				return
			}
		}
		in.Prompt = r.FormValue("prompt")
		data, mimeType, err := readUpload(r)
		if err != nil {
			h.logger.Warn("failed to read uploaded image", "error", err)
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Invalid image upload"})
			return
		}
		in.InputImage, in.InputMIME = data, mimeType
	}

	if strings.TrimSpace(in.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Prompt is required"})
		return
	}

	created, err := h.service.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrMissingPrompt) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "Prompt is required"})
			return
		}
		h.logger.Error("failed to create artifact", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to create artifact"})
		return
	}

	writeJSON(w, http.StatusOK, CreateResponse{ArtifactID: created.Artifact.ID, Link: created.Link})
}

// Get handles GET /api/artifacts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifact, err := h.service.Get(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, artifact)
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Artifact not found"})
	default:
		h.logger.Error("failed to fetch artifact", "error", err, "artifact_id", id)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to fetch artifact"})
	}
}

func readUpload(r *http.Request) ([]byte, string, error) {
	if r.MultipartForm == nil {
		return nil, "", nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", nil
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
