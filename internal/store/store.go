// Package store defines the persistent entity store for conversations and
// messages: identity resolution, idempotent inserts, and status transitions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hafizrazali90/team-inbox/internal/model"
)

var (
	// ErrConversationNotFound indicates an unknown conversation id.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound indicates an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
	// ErrUserNotFound indicates an unknown user id.
	ErrUserNotFound = errors.New("user not found")
	// ErrDepartmentNotFound indicates an unknown department slug.
	ErrDepartmentNotFound = errors.New("department not found")
)

// ConversationStore owns conversation rows.
type ConversationStore interface {
	// UpsertConversation resolves or lazily creates the conversation for a
	// contact identifier. The operation is atomic: concurrent callers for the
	// same identifier all resolve to the single stored row. The boolean
	// reports whether a new conversation was created.
	UpsertConversation(ctx context.Context, waID string, defaults model.ConversationDefaults) (*model.Conversation, bool, error)

	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ListConversations(ctx context.Context, filter model.ConversationFilter) (*model.ListConversationsResponse, error)

	// TouchConversation advances last_message_at.
	TouchConversation(ctx context.Context, id string, at time.Time) error

	// RecordOutboundStats advances last_message_at, increments the response
	// counter, and stamps first_response_at if it has never been set.
	RecordOutboundStats(ctx context.Context, id string, at time.Time) (*model.Conversation, error)

	SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error)
	AssignConversation(ctx context.Context, id, userID string) (*model.Conversation, error)
	SetFollowUp(ctx context.Context, id string, at time.Time) (*model.Conversation, error)
	SoftDeleteConversation(ctx context.Context, id string) error
}

// MessageStore owns message rows keyed by provider message id.
type MessageStore interface {
	// InsertMessage inserts a message keyed by its provider message id. If a
	// message with that id already exists the call is a no-op returning the
	// existing row with inserted=false. The loser of a concurrent race for
	// the same id resolves the same way, never with an error.
	InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, bool, error)

	GetMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error)

	// AdvanceMessageStatus applies a delivery status as a monotonic union.
	// An unknown provider message id is a benign no-op returning (nil, false,
	// nil); a duplicate or regressive status returns the current row with
	// advanced=false. Advancing to read also stamps read_at.
	AdvanceMessageStatus(ctx context.Context, providerMessageID string, status model.MessageStatus) (*model.Message, bool, error)

	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
}

// UserStore resolves agent identities.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// DepartmentStore resolves routing departments.
type DepartmentStore interface {
	DepartmentBySlug(ctx context.Context, slug string) (*model.Department, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	ConversationStore
	MessageStore
	UserStore
	DepartmentStore
}
