package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hafizrazali90/team-inbox/internal/service"
	"github.com/hafizrazali90/team-inbox/internal/whatsapp"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
	"github.com/hafizrazali90/team-inbox/pkg/metrics"
)

// WebhookHandler terminates the WhatsApp Cloud API webhook: the one-time
// subscription verification handshake and the ongoing event delivery POSTs.
type WebhookHandler struct {
	provider *whatsapp.Client
	inbox    *service.Inbox
	logger   *logger.Logger
}

func NewWebhookHandler(provider *whatsapp.Client, inbox *service.Inbox, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		provider: provider,
		inbox:    inbox,
		logger:   log,
	}
}

// Verify handles the GET verification handshake. Meta sends hub.mode,
// hub.verify_token and hub.challenge as query parameters; we echo the
// challenge back verbatim when the token matches and reject otherwise.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if !h.provider.VerifyToken(mode, token) {
		h.logger.Warnw("webhook verification rejected", "mode", mode)
		writeError(w, http.StatusForbidden, "verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive handles event delivery POSTs. The provider retries deliveries that
// do not get a 2xx, so every recognizable outcome acknowledges with 200;
// payloads that don't normalize into events are acknowledged and dropped.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload whatsapp.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warnw("webhook payload not decodable", "error", err)
		metrics.WebhookPayloadsIgnored.Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	events := whatsapp.Normalize(payload)
	if len(events) == 0 {
		metrics.WebhookPayloadsIgnored.Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	h.inbox.Process(r.Context(), events)

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
