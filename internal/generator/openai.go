package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig configures the OpenAI refiner and painter.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	ImageModel     string
	RequestTimeout time.Duration
	MaxRetries     int
}

func newOpenAIClient(cfg OpenAIConfig) (osdk.Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return osdk.Client{}, errors.New("generator: openai api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(cfg.MaxRetries)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	return osdk.NewClient(opts...), nil
}

// OpenAIRefiner asks a chat model for a curator description.
type OpenAIRefiner struct {
	client osdk.Client
	model  string
}

func NewOpenAIRefiner(cfg OpenAIConfig) (*OpenAIRefiner, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.ChatModel)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIRefiner{client: client, model: model}, nil
}

func (r *OpenAIRefiner) Name() string { return "openai-chat" }

func (r *OpenAIRefiner) Refine(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model: osdk.ChatModel(r.model),
		Messages: []osdk.ChatCompletionMessageParamUnion{
			osdk.SystemMessage(curatorSystemPrompt),
			osdk.UserMessage(curatorUserPrompt(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generator: openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generator: openai returned no choices")
	}
	return parseCuratorDescription(resp.Choices[0].Message.Content)
}

// OpenAIPainter renders images with the Images API. When an input image is
// supplied it uses the edit endpoint.
type OpenAIPainter struct {
	client     osdk.Client
	model      string
	httpClient *http.Client
}

func NewOpenAIPainter(cfg OpenAIConfig) (*OpenAIPainter, error) {
	client, err := newOpenAIClient(cfg)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.ImageModel)
	if model == "" {
		model = string(osdk.ImageModelGPTImage1)
	}
	return &OpenAIPainter{client: client, model: model, httpClient: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (p *OpenAIPainter) Name() string { return "openai" }

func (p *OpenAIPainter) Paint(ctx context.Context, prompt string, input []byte, inputMIME string) (Image, error) {
	var (
		resp *osdk.ImagesResponse
		err  error
	)
	if len(input) > 0 {
		if inputMIME == "" {
			inputMIME = http.DetectContentType(input)
		}
		resp, err = p.client.Images.Edit(ctx, osdk.ImageEditParams{
			Prompt: prompt,
			Model:  osdk.ImageModel(p.model),
			Image: osdk.ImageEditParamsImageUnion{
				OfFile: osdk.File(bytes.NewReader(input), "input"+extensionFor(inputMIME), inputMIME),
			},
		})
	} else {
		resp, err = p.client.Images.Generate(ctx, osdk.ImageGenerateParams{
			Prompt: prompt,
			Model:  osdk.ImageModel(p.model),
			Size:   osdk.ImageGenerateParamsSize1024x1024,
		})
	}
	if err != nil {
		return Image{}, fmt.Errorf("generator: openai images: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return Image{}, ErrEmptyImage
	}
	first := resp.Data[0]
	if first.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return Image{}, fmt.Errorf("generator: decode openai image: %w", err)
		}
		return Image{Data: data, MIMEType: http.DetectContentType(data)}, nil
	}
	if first.URL != "" {
		return p.download(ctx, first.URL)
	}
	return Image{}, ErrEmptyImage
}

// maxDownloadBytes caps an image fetched from a provider URL.
var maxDownloadBytes int64 = 20 << 20

func (p *OpenAIPainter) download(ctx context.Context, url string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, fmt.Errorf("generator: build download request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("generator: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("generator: download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("generator: read image: %w", err)
	}
	if int64(len(data)) > maxDownloadBytes {
		return Image{}, fmt.Errorf("generator: download image: exceeds %d bytes", maxDownloadBytes)
	}
	return Image{Data: data, MIMEType: http.DetectContentType(data)}, nil
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
