package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresWindow records processed message ids in processed_messages. Rows
// older than the retention are ignored and can be purged.
type PostgresWindow struct {
	pool rowQuerier
	ttl  time.Duration
}

func NewPostgresWindow(pool *pgxpool.Pool, ttl time.Duration) *PostgresWindow {
	if pool == nil {
		panic("dedup: pgx pool required")
	}
	return newPostgresWindowWithExec(pool, ttl)
}

func newPostgresWindowWithExec(exec rowQuerier, ttl time.Duration) *PostgresWindow {
	if exec == nil {
		panic("dedup: exec required")
	}
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	return &PostgresWindow{pool: exec, ttl: ttl}
}

func (w *PostgresWindow) Seen(ctx context.Context, id string) (bool, error) {
	query := `SELECT 1 FROM processed_messages WHERE message_id = $1 AND seen_at >= now() - make_interval(secs => $2)`
	var exists int
	if err := w.pool.QueryRow(ctx, query, normalizeID(id), w.ttl.Seconds()).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("dedup: check processed: %w", err)
	}
	return true, nil
}

func (w *PostgresWindow) Record(ctx context.Context, id string) error {
	query := `
		INSERT INTO processed_messages (message_id, seen_at)
		VALUES ($1, now())
		ON CONFLICT (message_id) DO UPDATE SET seen_at = EXCLUDED.seen_at
	`
	if _, err := w.pool.Exec(ctx, query, normalizeID(id)); err != nil {
		return fmt.Errorf("dedup: record processed: %w", err)
	}
	return nil
}

// Claim inserts the id, or takes over a row whose retention has lapsed.
// The conditional upsert makes the test-and-insert a single statement.
func (w *PostgresWindow) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		INSERT INTO processed_messages (message_id, seen_at)
		VALUES ($1, now())
		ON CONFLICT (message_id) DO UPDATE SET seen_at = EXCLUDED.seen_at
		WHERE processed_messages.seen_at < now() - make_interval(secs => $2)
	`
	ct, err := w.pool.Exec(ctx, query, normalizeID(id), w.ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("dedup: claim processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Purge deletes rows older than the retention window.
func (w *PostgresWindow) Purge(ctx context.Context) (int64, error) {
	query := `DELETE FROM processed_messages WHERE seen_at < now() - make_interval(secs => $1)`
	ct, err := w.pool.Exec(ctx, query, w.ttl.Seconds())
	if err != nil {
		return 0, fmt.Errorf("dedup: purge processed: %w", err)
	}
	return ct.RowsAffected(), nil
}
