package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "DEDUP_WINDOW", "DEDUP_BACKEND", "FRONTEND_BASE_URL", "AR_FRONTEND_URL", "CORS_ALLOWED_ORIGINS", "CONVERSATION_QUEUE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "5000" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DedupWindow != 5*time.Minute {
		t.Fatalf("expected 5m dedup window, got %s", cfg.DedupWindow)
	}
	if cfg.DedupBackend != "memory" {
		t.Fatalf("expected memory dedup backend, got %s", cfg.DedupBackend)
	}
	if cfg.ConversationQueue != "inline" {
		t.Fatalf("expected inline dispatch, got %s", cfg.ConversationQueue)
	}
	if cfg.GraphAPIBase != "https://graph.facebook.com/v19.0" {
		t.Fatalf("unexpected graph base %s", cfg.GraphAPIBase)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.FailureReply != "" {
		t.Fatalf("expected failure reply disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DEDUP_BACKEND", " Redis ")
	t.Setenv("DEDUP_WINDOW", "90s")
	t.Setenv("FRONTEND_BASE_URL", "https://x.test/")
	t.Setenv("GENERATOR_TIMEOUT", "30s")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("API_RATE_LIMIT", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DedupBackend != "redis" {
		t.Fatalf("expected normalized backend, got %q", cfg.DedupBackend)
	}
	if cfg.DedupWindow != 90*time.Second {
		t.Fatalf("expected dedup override, got %s", cfg.DedupWindow)
	}
	if cfg.FrontendBaseURL != "https://x.test" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.FrontendBaseURL)
	}
	if cfg.GeneratorTimeout != 30*time.Second {
		t.Fatalf("expected generator timeout override, got %s", cfg.GeneratorTimeout)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("expected worker count override, got %d", cfg.WorkerCount)
	}
	if cfg.APIRateLimit != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.APIRateLimit)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.test" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
}

func TestLegacyFrontendVariable(t *testing.T) {
	t.Setenv("FRONTEND_BASE_URL", "")
	t.Setenv("AR_FRONTEND_URL", "https://legacy.test")
	if got := Load().FrontendBaseURL; got != "https://legacy.test" {
		t.Fatalf("expected legacy frontend url, got %s", got)
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("TASK_TIMEOUT", "soon")
	if got := Load().TaskTimeout; got != 3*time.Minute {
		t.Fatalf("expected default task timeout, got %s", got)
	}
}
