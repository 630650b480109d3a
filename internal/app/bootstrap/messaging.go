package bootstrap

import (
	"fmt"

	appconfig "github.com/wolfman30/goodchoice-relay/internal/config"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// BuildMessenger creates the Graph API client and its instrumented wrapper.
func BuildMessenger(cfg *appconfig.Config, m *metrics.RelayMetrics, logger *logging.Logger) (*whatsapp.Messenger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	client, err := whatsapp.NewClient(whatsapp.ClientConfig{
		AccessToken:   cfg.WhatsAppToken,
		PhoneNumberID: cfg.PhoneNumberID,
		GraphAPIBase:  cfg.GraphAPIBase,
		MaxRetries:    cfg.SendMaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: whatsapp client: %w", err)
	}
	return whatsapp.NewMessenger(client, m, logger), nil
}
