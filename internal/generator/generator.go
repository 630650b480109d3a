// Package generator turns a short habit prompt into an exhibit image. A
// Refiner rewrites the prompt as a curator-style description and a Painter
// renders the image.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// ErrEmptyImage is returned when a painter succeeds without image bytes.
var ErrEmptyImage = errors.New("generator: provider returned no image")

// ErrEmptyPrompt is returned when the request has no prompt text.
var ErrEmptyPrompt = errors.New("generator: prompt is required")

// DefaultTimeout bounds a full refine-and-paint run.
const DefaultTimeout = 90 * time.Second

const (
	curatorSystemPrompt = "You are a museum curator. Respond ONLY with valid JSON."
	curatorUserTemplate = `Create a vivid visual description for: "%s". Return {"description": "..."}`
)

// Request is a single generation call.
type Request struct {
	Prompt     string
	InputImage []byte
	InputMIME  string
}

// Result is the generated image and the prompt that produced it.
type Result struct {
	Image         []byte
	MIMEType      string
	RefinedPrompt string
	Provider      string
}

// Image is raw painter output.
type Image struct {
	Data     []byte
	MIMEType string
}

// Refiner rewrites a user prompt into a richer visual description.
type Refiner interface {
	Refine(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Painter renders an image for a prompt, optionally conditioned on an input image.
type Painter interface {
	Paint(ctx context.Context, prompt string, input []byte, inputMIME string) (Image, error)
	Name() string
}

// Generator composes an optional Refiner with a Painter.
type Generator struct {
	refiner Refiner
	painter Painter
	timeout time.Duration
	metrics *metrics.RelayMetrics
	logger  *logging.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRefiner enables prompt refinement. Refinement failures fall back to
// the raw prompt.
func WithRefiner(r Refiner) Option {
	return func(g *Generator) { g.refiner = r }
}

// WithTimeout bounds each Generate call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMetrics records per-provider latency.
func WithMetrics(m *metrics.RelayMetrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// New builds a generator around painter.
func New(painter Painter, logger *logging.Logger, opts ...Option) *Generator {
	if painter == nil {
		panic("generator: painter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Generator{painter: painter, timeout: DefaultTimeout, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate refines the prompt (best effort) and paints an image.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Result{}, ErrEmptyPrompt
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	refined := g.refine(ctx, prompt)

	started := time.Now()
	img, err := g.painter.Paint(ctx, refined, req.InputImage, req.InputMIME)
	if err == nil && len(img.Data) == 0 {
		err = ErrEmptyImage
	}
	g.metrics.ObserveGenerator(g.painter.Name(), time.Since(started).Seconds(), err)
	if err != nil {
		return Result{}, fmt.Errorf("generator: %s paint: %w", g.painter.Name(), err)
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return Result{
		Image:         img.Data,
		MIMEType:      mimeType,
		RefinedPrompt: refined,
		Provider:      g.painter.Name(),
	}, nil
}

func (g *Generator) refine(ctx context.Context, prompt string) string {
	if g.refiner == nil {
		return prompt
	}
	started := time.Now()
	refined, err := g.refiner.Refine(ctx, prompt)
	g.metrics.ObserveGenerator(g.refiner.Name(), time.Since(started).Seconds(), err)
	if err != nil {
		g.logger.Warn("prompt refinement failed, using raw prompt", "error", err, "refiner", g.refiner.Name())
		return prompt
	}
	if strings.TrimSpace(refined) == "" {
		return prompt
	}
	return strings.TrimSpace(refined)
}

func curatorUserPrompt(prompt string) string {
	return fmt.Sprintf(curatorUserTemplate, prompt)
}

// parseCuratorDescription extracts "description" from a curator JSON reply.
// Code fences around the JSON are tolerated.
func parseCuratorDescription(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var payload struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", fmt.Errorf("generator: decode curator reply: %w", err)
	}
	desc := strings.TrimSpace(payload.Description)
	if desc == "" {
		return "", errors.New("generator: curator reply has no description")
	}
	return desc, nil
}
