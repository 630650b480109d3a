package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/goodchoice-relay/internal/config"
	"github.com/wolfman30/goodchoice-relay/internal/generator"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// BuildGenerator wires the painter named by IMAGE_PROVIDER and every
// configured prompt refiner. The returned cleanup releases provider clients.
func BuildGenerator(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, m *metrics.RelayMetrics, logger *logging.Logger) (*generator.Generator, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cleanup := func() {}

	openaiCfg := generator.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		ChatModel:      cfg.OpenAIChatModel,
		ImageModel:     cfg.OpenAIImageModel,
		RequestTimeout: cfg.GeneratorTimeout,
		MaxRetries:     1,
	}

	var painter generator.Painter
	switch cfg.ImageProvider {
	case "", "openai":
		p, err := generator.NewOpenAIPainter(openaiCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: openai painter: %w", err)
		}
		painter = p
	case "bedrock":
		if loadAWS == nil {
			return nil, nil, fmt.Errorf("bootstrap: IMAGE_PROVIDER=bedrock requires AWS config")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		painter = generator.NewBedrockPainter(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockImageModelID)
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown IMAGE_PROVIDER %q", cfg.ImageProvider)
	}

	var refiners []generator.Refiner
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		r, err := generator.NewOpenAIRefiner(openaiCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: openai refiner: %w", err)
		}
		refiners = append(refiners, r)
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		r, err := generator.NewGeminiRefiner(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini refiner disabled", "error", err)
		} else {
			refiners = append(refiners, r)
			cleanup = func() { _ = r.Close() }
		}
	}

	opts := []generator.Option{
		generator.WithTimeout(cfg.GeneratorTimeout),
		generator.WithMetrics(m),
	}
	refinerName := "none"
	if fallback := generator.NewFallbackRefiner(refiners...); fallback != nil {
		opts = append(opts, generator.WithRefiner(fallback))
		refinerName = fallback.Name()
	}

	logger.Info("content generator configured", "painter", painter.Name(), "refiner", refinerName)
	return generator.New(painter, logger, opts...), cleanup, nil
}
