// Package bootstrap builds the relay's runtime dependencies from config.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/goodchoice-relay/internal/config"
	"github.com/wolfman30/goodchoice-relay/internal/dedup"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// AWSConfigLoader returns the shared AWS SDK config. It is only called when
// an AWS-backed component is selected.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL. An empty URL returns nil so
// callers fall back to in-memory stores.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres connected")
	return pool, nil
}

// BuildDedupWindow selects the deduplication backend named by
// DEDUP_BACKEND (memory, redis or postgres).
func BuildDedupWindow(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient redis.Cmdable, logger *logging.Logger) (dedup.Window, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.DedupBackend {
	case "", "memory":
		logger.Info("dedup window in memory", "window", cfg.DedupWindow.String())
		return dedup.NewMemoryWindow(cfg.DedupWindow), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("bootstrap: DEDUP_BACKEND=redis requires a reachable REDIS_ADDR")
		}
		logger.Info("dedup window in redis", "window", cfg.DedupWindow.String())
		return dedup.NewRedisWindow(redisClient, cfg.DedupWindow), nil
	case "postgres":
		if pool == nil {
			return nil, errors.New("bootstrap: DEDUP_BACKEND=postgres requires DATABASE_URL")
		}
		logger.Info("dedup window in postgres", "window", cfg.DedupWindow.String())
		return dedup.NewPostgresWindow(pool, cfg.DedupWindow), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown DEDUP_BACKEND %q", cfg.DedupBackend)
	}
}
