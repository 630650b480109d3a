package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/goodchoice-relay/internal/artifacts"
	httpmiddleware "github.com/wolfman30/goodchoice-relay/internal/http/middleware"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *whatsapp.WebhookHandler
	Artifacts      *artifacts.Handler
	Health         http.Handler
	MetricsHandler http.Handler

	// UploadDir is served under /uploads when images are stored on disk.
	UploadDir          string
	CORSAllowedOrigins []string

	// Per-IP limit on artifact creation. Zero disables it.
	ArtifactRateLimit float64
	ArtifactRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Webhook == nil {
		panic("router: webhook handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/webhook", cfg.Webhook.HandleVerification)
	r.Post("/webhook", cfg.Webhook.HandleInbound)

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}
	if dir := strings.TrimSpace(cfg.UploadDir); dir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir))))
	}

	if cfg.Artifacts != nil {
		r.Route("/api/artifacts", func(api chi.Router) {
			if len(cfg.CORSAllowedOrigins) > 0 {
				api.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
			}
			create := http.Handler(http.HandlerFunc(cfg.Artifacts.Create))
			if cfg.ArtifactRateLimit > 0 {
				create = httpmiddleware.RateLimit(cfg.ArtifactRateLimit, cfg.ArtifactRateBurst)(create)
			}
			api.Method(http.MethodPost, "/", create)
			api.Options("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
			api.Get("/{id}", cfg.Artifacts.Get)
			api.Options("/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		})
	}

	return r
}
