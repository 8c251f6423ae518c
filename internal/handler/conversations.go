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
	"github.com/hafizrazali90/team-inbox/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// ConversationHandler exposes the conversation management surface: listing,
// assignment, lifecycle status and follow-up scheduling.
type ConversationHandler struct {
	conversations *service.Conversations
	logger        *logger.Logger
}

func NewConversationHandler(conversations *service.Conversations, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, logger: log}
}

// List returns conversations visible to the caller, filtered by the query
// string. Role scoping happens in the service layer.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	q := r.URL.Query()

	filter := model.ConversationFilter{
		Status: model.ConversationStatus(q.Get("status")),
		Search: q.Get("search"),
		Limit:  20,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 100 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		filter.Offset = v
	}

	resp, err := h.conversations.List(r.Context(), user, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single conversation.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversations.Get(r.Context(), user, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Assign routes a conversation to an agent.
func (h *ConversationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "id")

	var req model.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.conversations.Assign(r.Context(), user, id, req.UserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// UpdateStatus changes a conversation's lifecycle status.
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "id")

	var req model.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.conversations.UpdateStatus(r.Context(), user, id, req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// FollowUp schedules a follow-up for a conversation.
func (h *ConversationHandler) FollowUp(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "id")

	var req model.FollowUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.conversations.SetFollowUp(r.Context(), user, id, req.FollowUpAt)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete soft deletes a conversation.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.conversations.Delete(r.Context(), user, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFollowUpInPast):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		h.logger.Errorw("conversation request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
