package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "goodchoice:dedup:"

// RedisWindow shares the window across instances using SET NX with a TTL,
// so Redis handles eviction.
type RedisWindow struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisWindow creates a Redis-backed window.
func NewRedisWindow(client redis.Cmdable, ttl time.Duration) *RedisWindow {
	if client == nil {
		panic("dedup: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	return &RedisWindow{client: client, ttl: ttl, prefix: defaultRedisPrefix}
}

func (w *RedisWindow) key(id string) string {
	return w.prefix + normalizeID(id)
}

func (w *RedisWindow) Seen(ctx context.Context, id string) (bool, error) {
	n, err := w.client.Exists(ctx, w.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: redis exists: %w", err)
	}
	return n > 0, nil
}

func (w *RedisWindow) Record(ctx context.Context, id string) error {
	if err := w.client.Set(ctx, w.key(id), time.Now().UTC().Unix(), w.ttl).Err(); err != nil {
		return fmt.Errorf("dedup: redis set: %w", err)
	}
	return nil
}

func (w *RedisWindow) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := w.client.SetNX(ctx, w.key(id), time.Now().UTC().Unix(), w.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: redis setnx: %w", err)
	}
	return ok, nil
}
