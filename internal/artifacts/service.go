package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/goodchoice-relay/internal/generator"
	"github.com/wolfman30/goodchoice-relay/internal/media"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

var (
	// ErrGeneration marks failures from the content generator.
	ErrGeneration = errors.New("artifacts: generation failed")
	// ErrStorage marks failures persisting images or the artifact row.
	ErrStorage = errors.New("artifacts: storage failed")
)

// ImageGenerator is the generator contract the service depends on.
type ImageGenerator interface {
	Generate(ctx context.Context, req generator.Request) (generator.Result, error)
}

// CreateInput describes one exhibit to generate.
type CreateInput struct {
	Source     Source
	Prompt     string
	InputImage []byte
	InputMIME  string
}

// Created is a persisted artifact plus the image bytes for delivery.
type Created struct {
	Artifact *Artifact
	Image    []byte
	MIMEType string
	Link     string
}

// Service runs generate, store, persist for both the web API and the
// WhatsApp pipeline.
type Service struct {
	repo            Repository
	generator       ImageGenerator
	media           media.Store
	frontendBaseURL string
	metrics         *metrics.RelayMetrics
	logger          *logging.Logger
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Repository      Repository
	Generator       ImageGenerator
	Media           media.Store
	FrontendBaseURL string
	Metrics         *metrics.RelayMetrics
	Logger          *logging.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Repository == nil {
		panic("artifacts: repository cannot be nil")
	}
	if cfg.Generator == nil {
		panic("artifacts: generator cannot be nil")
	}
	if cfg.Media == nil {
		panic("artifacts: media store cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:            cfg.Repository,
		generator:       cfg.Generator,
		media:           cfg.Media,
		frontendBaseURL: cfg.FrontendBaseURL,
		metrics:         cfg.Metrics,
		logger:          logger,
	}
}

// Link returns the viewer URL for id.
func (s *Service) Link(id string) string {
	return Link(s.frontendBaseURL, id)
}

// Create generates an image, stores it, and persists the artifact. Nothing
// is persisted when generation fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, ErrMissingPrompt
	}

	var userImageURL string
	if len(in.InputImage) > 0 {
		url, err := s.media.Save(ctx, media.PrefixUploads, in.InputImage, in.InputMIME)
		if err != nil {
			return nil, fmt.Errorf("%w: save user image: %w", ErrStorage, err)
		}
		userImageURL = url
	}

	result, err := s.generator.Generate(ctx, generator.Request{
		Prompt:     prompt,
		InputImage: in.InputImage,
		InputMIME:  in.InputMIME,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	generatedURL, err := s.media.Save(ctx, media.PrefixGenerated, result.Image, result.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("%w: save generated image: %w", ErrStorage, err)
	}

	artifact, err := s.repo.Create(ctx, &CreateArtifactRequest{
		Source:            in.Source,
		UserPrompt:        prompt,
		UserImageURL:      userImageURL,
		GeneratedImageURL: generatedURL,
		AIPrompt:          result.RefinedPrompt,
		AIProvider:        result.Provider,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.metrics.ObserveArtifact(string(in.Source))
	s.logger.Info("artifact created", "artifact_id", artifact.ID, "source", in.Source, "provider", result.Provider)

	return &Created{
		Artifact: artifact,
		Image:    result.Image,
		MIMEType: result.MIMEType,
		Link:     s.Link(artifact.ID),
	}, nil
}

// Get returns a stored artifact.
func (s *Service) Get(ctx context.Context, id string) (*Artifact, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}
