package artifacts

import (
	"strings"
	"time"
)

// Source identifies where an artifact was requested from.
type Source string

const (
	SourceWeb      Source = "web"
	SourceWhatsApp Source = "whatsapp"
)

// Artifact is one generated exhibit. It is never mutated after creation.
type Artifact struct {
	ID                string    `json:"id"`
	Source            Source    `json:"source"`
	UserPrompt        string    `json:"userPrompt"`
	UserImageURL      string    `json:"userImageUrl,omitempty"`
	GeneratedImageURL string    `json:"generatedImageUrl"`
	AIPrompt          string    `json:"aiPrompt,omitempty"`
	AIProvider        string    `json:"aiProvider"`
	CreatedAt         time.Time `json:"createdAt"`
}

// CreateArtifactRequest carries the fields needed to persist an artifact.
type CreateArtifactRequest struct {
	Source            Source `validate:"required,oneof=web whatsapp"`
	UserPrompt        string `validate:"required"`
	UserImageURL      string `validate:"omitempty,max=2048"`
	GeneratedImageURL string `validate:"required,max=2048"`
	AIPrompt          string
	AIProvider        string `validate:"required"`
}

// Validate checks required fields.
func (r *CreateArtifactRequest) Validate() error {
	r.UserPrompt = strings.TrimSpace(r.UserPrompt)
	if r.UserPrompt == "" {
		return ErrMissingPrompt
	}
	if err := validate.Struct(r); err != nil {
		return invalidRequest(err)
	}
	return nil
}

// CreateResponse is returned by POST /api/artifacts.
type CreateResponse struct {
	ArtifactID string `json:"artifactId"`
	Link       string `json:"link"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Link builds the frontend viewer URL for an artifact id.
func Link(frontendBaseURL, id string) string {
	return strings.TrimRight(frontendBaseURL, "/") + "/?arId=" + id
}
