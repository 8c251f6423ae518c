package realtime

import (
	"context"
	"errors"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/store"
)

// Authorizer decides whether a user may join a logical channel. The
// predicate is evaluated on every join attempt, never cached, because
// assignment can change between joins.
type Authorizer struct {
	conversations store.ConversationStore
}

// NewAuthorizer creates an authorizer over the conversation store.
func NewAuthorizer(conversations store.ConversationStore) *Authorizer {
	return &Authorizer{conversations: conversations}
}

// CanJoin reports whether the user may subscribe to the channel.
//
//   - user.{id}: the subscriber's identity must match.
//   - conversation.{id}: admins and operation managers always; department
//     managers when the conversation belongs to their department; agents
//     only when the conversation is assigned to them.
//   - department.{id}: admins and operation managers always; everyone else
//     only for their own department.
func (a *Authorizer) CanJoin(ctx context.Context, user *model.User, channel string) (bool, error) {
	class, id, ok := ParseChannel(channel)
	if !ok {
		return false, nil
	}

	switch class {
	case ClassUser:
		return user.ID == id, nil

	case ClassDepartment:
		if user.IsAdmin() || user.IsOperationManager() {
			return true, nil
		}
		return user.DepartmentID == id, nil

	case ClassConversation:
		if user.IsAdmin() || user.IsOperationManager() {
			return true, nil
		}
		conv, err := a.conversations.GetConversation(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrConversationNotFound) {
				return false, nil
			}
			return false, err
		}
		if user.CanManageConversations() {
			return conv.DepartmentID == user.DepartmentID, nil
		}
		return conv.AssignedTo != nil && *conv.AssignedTo == user.ID, nil
	}

	return false, nil
}
