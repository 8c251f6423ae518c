package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hafizrazali90/team-inbox/internal/middleware"
	"github.com/hafizrazali90/team-inbox/internal/nats"
	"github.com/hafizrazali90/team-inbox/internal/realtime"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
	"github.com/hafizrazali90/team-inbox/pkg/metrics"

	"github.com/go-chi/chi/v5"
)

// RealtimeHandler exposes channel join authorization and the SSE event
// stream backed by NATS fan-out.
type RealtimeHandler struct {
	authorizer *realtime.Authorizer
	streams    *nats.StreamManager
	logger     *logger.Logger
}

func NewRealtimeHandler(authorizer *realtime.Authorizer, streams *nats.StreamManager, log *logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		authorizer: authorizer,
		streams:    streams,
		logger:     log,
	}
}

// Authorize answers a channel join request. Authorization is evaluated per
// attempt; a prior grant on the same channel carries no weight.
func (h *RealtimeHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateChannelName(req.Channel); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.authorizer.CanJoin(r.Context(), user, req.Channel)
	if err != nil {
		h.logger.Errorw("channel authorization failed", "channel", req.Channel, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel":    req.Channel,
		"authorized": true,
	})
}

// Stream serves a server-sent event stream for one channel. The join is
// authorized before the subscription is opened; slow consumers drop events
// rather than stall the fan-out.
func (h *RealtimeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	channel := chi.URLParam(r, "channel")

	if err := middleware.ValidateChannelName(channel); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := h.authorizer.CanJoin(r.Context(), user, channel)
	if err != nil {
		h.logger.Errorw("channel authorization failed", "channel", channel, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := make(chan []byte, 64)
	sub, err := h.streams.Subscribe(channel, func(data []byte) {
		select {
		case events <- data:
		default:
			// Consumer is not keeping up; drop rather than block the
			// NATS callback.
		}
	})
	if err != nil {
		h.logger.Errorw("channel subscription failed", "channel", channel, "error", err)
		writeError(w, http.StatusServiceUnavailable, "stream unavailable")
		return
	}
	defer sub.Unsubscribe()

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Infow("sse stream opened", "channel", channel, "user_id", user.ID)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Infow("sse stream closed", "channel", channel, "user_id", user.ID)
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case data := <-events:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
