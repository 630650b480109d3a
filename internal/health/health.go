// Package health reports liveness of the server and its database.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

const (
	DBConnected    = "connected"
	DBDisconnected = "disconnected"
	DBMemory       = "memory"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Response is the /health body.
type Response struct {
	Server string `json:"server"`
	DB     string `json:"db"`
}

// Handler answers health checks. A nil pinger reports the in-memory store.
type Handler struct {
	db     Pinger
	logger *logging.Logger
}

func NewHandler(db Pinger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{db: db, logger: logger}
}

// Check reports the database state. The server is always "ok" while it can
// answer.
func (h *Handler) Check(ctx context.Context) Response {
	resp := Response{Server: "ok", DB: DBMemory}
	if h.db == nil {
		return resp
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := h.db.Ping(pingCtx); err != nil {
		h.logger.Warn("health: database ping failed", "error", err)
		resp.DB = DBDisconnected
		return resp
	}
	resp.DB = DBConnected
	return resp
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.Check(r.Context()))
}
