package service

import (
	"context"
	"errors"
	"time"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
)

var (
	// ErrForbidden indicates the actor lacks access to the conversation or
	// operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStatus indicates an unknown conversation status value.
	ErrInvalidStatus = errors.New("invalid conversation status")
	// ErrFollowUpInPast indicates a follow-up scheduled before now.
	ErrFollowUpInPast = errors.New("follow-up must be in the future")
)

// Conversations handles agent-driven conversation operations. Role scoping
// mirrors channel authorization: admins and operation managers see
// everything, managers see their department, agents see their assignments.
type Conversations struct {
	store  store.Store
	logger *logger.Logger
}

// NewConversations creates the conversation service.
func NewConversations(st store.Store, log *logger.Logger) *Conversations {
	return &Conversations{store: st, logger: log.With("component", "conversations")}
}

// List returns conversations visible to the user, most recent activity
// first.
func (s *Conversations) List(ctx context.Context, user *model.User, filter model.ConversationFilter) (*model.ListConversationsResponse, error) {
	if !user.IsAdmin() && !user.IsOperationManager() {
		filter.DepartmentID = user.DepartmentID
	}
	if user.Role == model.RoleAgent {
		filter.AssignedTo = user.ID
	}
	return s.store.ListConversations(ctx, filter)
}

// Get returns one conversation after checking the user's access to it.
func (s *Conversations) Get(ctx context.Context, user *model.User, id string) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(user, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Conversations) checkAccess(user *model.User, conv *model.Conversation) error {
	if user.IsAdmin() || user.IsOperationManager() {
		return nil
	}
	if conv.DepartmentID != user.DepartmentID {
		return ErrForbidden
	}
	if user.Role == model.RoleAgent {
		if conv.AssignedTo == nil || *conv.AssignedTo != user.ID {
			return ErrForbidden
		}
	}
	return nil
}

// Assign routes a conversation to an agent and reopens it. Only users who
// manage conversations may assign.
func (s *Conversations) Assign(ctx context.Context, actor *model.User, id, userID string) (*model.Conversation, error) {
	if !actor.CanManageConversations() {
		return nil, ErrForbidden
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	conv, err := s.store.AssignConversation(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("conversation assigned",
		"conversation_id", id, "assigned_to", userID, "actor_id", actor.ID)

	return conv, nil
}

// UpdateStatus changes the conversation lifecycle status. This is the only
// way a closed conversation reopens.
func (s *Conversations) UpdateStatus(ctx context.Context, actor *model.User, id string, status model.ConversationStatus) (*model.Conversation, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	conv, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	conv, err = s.store.SetConversationStatus(ctx, conv.ID, status)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("conversation status updated",
		"conversation_id", id, "status", status, "actor_id", actor.ID)

	return conv, nil
}

// SetFollowUp schedules a follow-up; the due time must be in the future.
func (s *Conversations) SetFollowUp(ctx context.Context, actor *model.User, id string, at time.Time) (*model.Conversation, error) {
	if !at.After(time.Now()) {
		return nil, ErrFollowUpInPast
	}

	conv, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	return s.store.SetFollowUp(ctx, conv.ID, at)
}

// Delete soft deletes a conversation; admin only. Rows are kept for audit.
func (s *Conversations) Delete(ctx context.Context, actor *model.User, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.store.SoftDeleteConversation(ctx, id)
}
