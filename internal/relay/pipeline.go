package relay

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/goodchoice-relay/internal/artifacts"
	"github.com/wolfman30/goodchoice-relay/internal/menu"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// ArtifactCreator generates, stores and persists an exhibit.
type ArtifactCreator interface {
	Create(ctx context.Context, in artifacts.CreateInput) (*artifacts.Created, error)
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Catalog   *menu.Catalog
	Artifacts ArtifactCreator
	Messenger Messenger
	// FailureReply is sent when generation or persistence fails. Empty
	// keeps failures silent to the user.
	FailureReply string
	Metrics      *metrics.RelayMetrics
	Logger       *logging.Logger
}

// Pipeline fulfills an option selection end to end.
type Pipeline struct {
	catalog      *menu.Catalog
	artifacts    ArtifactCreator
	messenger    Messenger
	failureReply string
	metrics      *metrics.RelayMetrics
	logger       *logging.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Catalog == nil {
		panic("relay: catalog cannot be nil")
	}
	if cfg.Artifacts == nil {
		panic("relay: artifact creator cannot be nil")
	}
	if cfg.Messenger == nil {
		panic("relay: messenger cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		catalog:      cfg.Catalog,
		artifacts:    cfg.Artifacts,
		messenger:    cfg.Messenger,
		failureReply: cfg.FailureReply,
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

// Fulfill resolves the option prompt, creates the artifact, then delivers
// the image and the viewer link. No message referencing the artifact is
// sent unless it was persisted.
func (p *Pipeline) Fulfill(ctx context.Context, sender, optionID string) error {
	ctx, span := relayTracer.Start(ctx, "relay.fulfill")
	defer span.End()
	span.SetAttributes(attribute.String("goodchoice.option_id", optionID))

	prompt, ok := p.catalog.Prompt(optionID)
	if !ok {
		p.logger.Warn("unknown option selected", "option_id", optionID, "to", sender)
		p.metrics.ObservePipeline("unknown_option")
		return nil
	}

	created, err := p.artifacts.Create(ctx, artifacts.CreateInput{
		Source: artifacts.SourceWhatsApp,
		Prompt: prompt,
	})
	if err != nil {
		span.RecordError(err)
		outcome := "storage_failed"
		if errors.Is(err, artifacts.ErrGeneration) {
			outcome = "generation_failed"
		}
		p.metrics.ObservePipeline(outcome)
		p.logger.Error("exhibit fulfillment aborted", "error", err, "option_id", optionID, "to", sender, "stage", outcome)
		p.replyFailure(ctx, sender)
		return fmt.Errorf("relay: fulfill %s: %w", optionID, err)
	}
	span.SetAttributes(attribute.String("goodchoice.artifact_id", created.Artifact.ID))

	delivered := true
	mediaID, err := p.messenger.UploadImage(ctx, created.Image, created.MIMEType)
	if err != nil {
		delivered = false
		p.logger.Error("exhibit image upload failed", "error", err, "artifact_id", created.Artifact.ID)
	} else if err := p.messenger.SendImage(ctx, sender, mediaID, exhibitCaption); err != nil {
		delivered = false
		p.logger.Error("exhibit image send failed", "error", err, "artifact_id", created.Artifact.ID)
	}

	if err := p.messenger.SendText(ctx, sender, exhibitLinkMessage+created.Link); err != nil {
		delivered = false
		p.logger.Error("exhibit link send failed", "error", err, "artifact_id", created.Artifact.ID)
	}

	if delivered {
		p.metrics.ObservePipeline("fulfilled")
	} else {
		p.metrics.ObservePipeline("partially_delivered")
	}
	p.logger.Info("exhibit fulfilled", "artifact_id", created.Artifact.ID, "option_id", optionID, "delivered", delivered)
	return nil
}

func (p *Pipeline) replyFailure(ctx context.Context, to string) {
	if p.failureReply == "" {
		return
	}
	if err := p.messenger.SendText(ctx, to, p.failureReply); err != nil {
		p.logger.Warn("failure reply not sent", "error", err, "to", to)
	}
}
