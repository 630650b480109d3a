package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/goodchoice-relay/cmd/mainconfig"
	"github.com/wolfman30/goodchoice-relay/internal/api/router"
	"github.com/wolfman30/goodchoice-relay/internal/app/bootstrap"
	"github.com/wolfman30/goodchoice-relay/internal/artifacts"
	appconfig "github.com/wolfman30/goodchoice-relay/internal/config"
	"github.com/wolfman30/goodchoice-relay/internal/dedup"
	"github.com/wolfman30/goodchoice-relay/internal/health"
	"github.com/wolfman30/goodchoice-relay/internal/menu"
	"github.com/wolfman30/goodchoice-relay/internal/observability/metrics"
	"github.com/wolfman30/goodchoice-relay/internal/relay"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

const (
	shutdownTimeout = 30 * time.Second
	janitorInterval = time.Minute
)

func main() {
	// A missing .env is fine; the environment is authoritative.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting goodchoice relay",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("relay exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	metricsHandler, relayMetrics := setupMetrics()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var (
		repo   artifacts.Repository = artifacts.NewInMemoryRepository()
		pinger health.Pinger
	)
	if pool != nil {
		defer pool.Close()
		repo = artifacts.NewPostgresRepository(pool)
		pinger = pool
	} else {
		logger.Warn("DATABASE_URL not set; artifacts are kept in memory")
	}

	// Left as a nil interface unless a client was actually built.
	var redisClient redis.Cmdable
	if cfg.DedupBackend == "redis" {
		if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
			defer client.Close()
			redisClient = client
		}
	}
	window, err := bootstrap.BuildDedupWindow(cfg, pool, redisClient, logger)
	if err != nil {
		return err
	}
	go runJanitor(ctx, window, logger)

	loadAWS := bootstrap.AWSConfigLoader(mainconfig.Loader(cfg))

	mediaStore, err := bootstrap.BuildMediaStore(ctx, cfg, loadAWS, logger)
	if err != nil {
		return err
	}
	gen, closeGenerator, err := bootstrap.BuildGenerator(ctx, cfg, loadAWS, relayMetrics, logger)
	if err != nil {
		return err
	}
	defer closeGenerator()

	messenger, err := bootstrap.BuildMessenger(cfg, relayMetrics, logger.Component("whatsapp"))
	if err != nil {
		return err
	}

	if cfg.FrontendBaseURL == "" {
		logger.Warn("FRONTEND_BASE_URL not set; exhibit links will be relative")
	}
	service := artifacts.NewService(artifacts.ServiceConfig{
		Repository:      repo,
		Generator:       gen,
		Media:           mediaStore.Store,
		FrontendBaseURL: cfg.FrontendBaseURL,
		Metrics:         relayMetrics,
		Logger:          logger.Component("artifacts"),
	})

	catalog := menu.Default()
	relayLogger := logger.Component("relay")
	pipeline := relay.NewPipeline(relay.PipelineConfig{
		Catalog:      catalog,
		Artifacts:    service,
		Messenger:    messenger,
		FailureReply: cfg.FailureReply,
		Metrics:      relayMetrics,
		Logger:       relayLogger,
	})
	conversation := relay.NewRouter(relay.RouterConfig{
		Catalog:          catalog,
		Messenger:        messenger,
		Pipeline:         pipeline,
		UnrecognizedHint: cfg.UnrecognizedHint,
		Metrics:          relayMetrics,
		Logger:           relayLogger,
	})

	dispatch, err := bootstrap.BuildDispatcher(ctx, cfg, conversation.Handle, loadAWS, relayMetrics, relayLogger)
	if err != nil {
		return err
	}

	if cfg.VerifyToken == "" {
		logger.Warn("VERIFY_TOKEN not set; webhook verification will always fail")
	}
	webhook := whatsapp.NewWebhookHandler(whatsapp.WebhookConfig{
		VerifyToken: cfg.VerifyToken,
		AppSecret:   cfg.WhatsAppAppSecret,
		Window:      window,
		Dispatcher:  dispatch.Dispatcher,
		Metrics:     relayMetrics,
		Logger:      logger.Component("webhook"),
	})

	handler := router.New(&router.Config{
		Logger:             logger,
		Webhook:            webhook,
		Artifacts:          artifacts.NewHandler(service, logger.Component("api")),
		Health:             health.NewHandler(pinger, logger),
		MetricsHandler:     metricsHandler,
		UploadDir:          mediaStore.UploadDir,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ArtifactRateLimit:  cfg.APIRateLimit,
		ArtifactRateBurst:  cfg.APIRateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "dispatch", dispatch.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dispatch.Drain(shutdownCtx); err != nil {
		logger.Warn("in-flight relay tasks abandoned", "error", err)
	}
	return nil
}

// setupMetrics registers relay metrics plus runtime collectors on a private
// registry and returns its exposition handler.
func setupMetrics() (http.Handler, *metrics.RelayMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), metrics.NewRelayMetrics(reg)
}

// runJanitor evicts expired dedup entries for backends without native TTLs.
func runJanitor(ctx context.Context, window dedup.Window, logger *logging.Logger) {
	switch w := window.(type) {
	case *dedup.MemoryWindow:
		w.Run(ctx, janitorInterval)
	case *dedup.PostgresWindow:
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := w.Purge(ctx); err != nil {
					logger.Warn("dedup purge failed", "error", err)
				} else if n > 0 {
					logger.Debug("dedup entries purged", "count", n)
				}
			}
		}
	}
}
