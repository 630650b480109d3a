package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiRefiner produces curator descriptions with a Gemini model.
type GeminiRefiner struct {
	client  *genai.Client
	modelID string
}

// NewGeminiRefiner creates a Gemini-backed refiner.
func NewGeminiRefiner(ctx context.Context, apiKey, modelID string) (*GeminiRefiner, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("generator: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("generator: failed to create gemini client: %w", err)
	}
	return &GeminiRefiner{client: client, modelID: modelID}, nil
}

func (r *GeminiRefiner) Name() string { return "gemini" }

func (r *GeminiRefiner) Refine(ctx context.Context, prompt string) (string, error) {
	model := r.client.GenerativeModel(r.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(curatorSystemPrompt))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(curatorUserPrompt(prompt)))
	if err != nil {
		return "", fmt.Errorf("generator: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("generator: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("generator: gemini returned empty content")
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return parseCuratorDescription(text.String())
}

// Close releases resources held by the Gemini client.
func (r *GeminiRefiner) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
