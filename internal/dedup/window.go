// Package dedup tracks recently seen inbound message ids so redelivered
// webhook events are dispatched at most once per retention window.
package dedup

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// DefaultRetention is how long a message id stays claimed.
const DefaultRetention = 5 * time.Minute

// Window is a time-bounded membership set of message ids.
type Window interface {
	// Seen reports whether id was recorded and has not yet been evicted.
	Seen(ctx context.Context, id string) (bool, error)
	// Record inserts id, restarting its retention period.
	Record(ctx context.Context, id string) error
	// Claim atomically tests and inserts id. Only the first caller inside
	// the retention window gets true.
	Claim(ctx context.Context, id string) (bool, error)
}

// FailOpenWindow degrades backend errors into "not seen" so a first-time
// message is never refused because the window is unavailable.
type FailOpenWindow struct {
	inner  Window
	logger *logging.Logger
}

// FailOpen wraps a window with fail-open semantics.
func FailOpen(inner Window, logger *logging.Logger) *FailOpenWindow {
	if inner == nil {
		panic("dedup: window cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailOpenWindow{inner: inner, logger: logger}
}

func (w *FailOpenWindow) Seen(ctx context.Context, id string) (bool, error) {
	seen, err := w.inner.Seen(ctx, id)
	if err != nil {
		w.logger.Warn("dedup window unavailable, treating message as new", "error", err, "message_id", id)
		return false, nil
	}
	return seen, nil
}

func (w *FailOpenWindow) Record(ctx context.Context, id string) error {
	if err := w.inner.Record(ctx, id); err != nil {
		w.logger.Warn("dedup window record failed", "error", err, "message_id", id)
	}
	return nil
}

func (w *FailOpenWindow) Claim(ctx context.Context, id string) (bool, error) {
	claimed, err := w.inner.Claim(ctx, id)
	if err != nil {
		w.logger.Warn("dedup window unavailable, processing message anyway", "error", err, "message_id", id)
		return true, nil
	}
	return claimed, nil
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
