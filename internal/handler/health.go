package handler

import (
	"net/http"
	"time"

	"github.com/hafizrazali90/team-inbox/internal/nats"
)

// HealthHandler reports process liveness and dependency readiness.
type HealthHandler struct {
	nats      *nats.Client
	startedAt time.Time
}

func NewHealthHandler(natsClient *nats.Client) *HealthHandler {
	return &HealthHandler{
		nats:      natsClient,
		startedAt: time.Now(),
	}
}

// Health reports liveness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	})
}

// Ready reports readiness; the service is not ready without its event bus.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.nats == nil || !h.nats.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"nats":   "disconnected",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"nats":   "connected",
	})
}
