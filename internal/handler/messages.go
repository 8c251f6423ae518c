package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hafizrazali90/team-inbox/internal/middleware"
	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/service"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/internal/whatsapp"
	"github.com/hafizrazali90/team-inbox/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// MessageHandler exposes outbound message dispatch and per-conversation
// message history.
type MessageHandler struct {
	dispatcher    *service.Dispatcher
	conversations *service.Conversations
	store         store.Store
	logger        *logger.Logger
}

func NewMessageHandler(dispatcher *service.Dispatcher, conversations *service.Conversations, st store.Store, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		dispatcher:    dispatcher,
		conversations: conversations,
		store:         st,
		logger:        log,
	}
}

// Send dispatches a message on a conversation the caller can access. A
// provider rejection surfaces the provider's own diagnostic body so the
// agent sees why the send failed.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type == model.ContentText {
		if err := middleware.ValidateMessageContent(req.Content); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Access is checked against the conversation before dispatching.
	if _, err := h.conversations.Get(r.Context(), user, req.ConversationID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	msg, err := h.dispatcher.Send(r.Context(), req.ConversationID, user, req.Spec())
	if err != nil {
		var apiErr *whatsapp.APIError
		if errors.As(err, &apiErr) {
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":          "failed to send message",
				"provider_error": apiErr.Body,
			})
			return
		}
		if errors.Is(err, model.ErrEmptyBody) || errors.Is(err, model.ErrMissingMedia) || errors.Is(err, model.ErrUnknownContentType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// List returns the message history of one conversation, oldest first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.conversations.Get(r.Context(), user, conversationID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	q := r.URL.Query()
	limit := 50
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}

	messages, err := h.store.ListMessages(r.Context(), conversationID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

func (h *MessageHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		h.logger.Errorw("message request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
