// Package realtime computes the fan-out of state changes to logical
// channels and decides which subscriber may join each channel.
package realtime

import (
	"context"
	"strings"
	"time"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
	"github.com/hafizrazali90/team-inbox/pkg/metrics"
)

// Event names published to subscribers.
const (
	EventMessageReceived = "message.received"
	EventMessageSent     = "message.sent"
)

// Channel classes.
const (
	ClassConversation = "conversation"
	ClassDepartment   = "department"
	ClassUser         = "user"
)

// ConversationChannel returns the channel for a conversation thread.
func ConversationChannel(id string) string {
	return ClassConversation + "." + id
}

// DepartmentChannel returns the channel for a department dashboard.
func DepartmentChannel(id string) string {
	return ClassDepartment + "." + id
}

// UserChannel returns a user's personal channel.
func UserChannel(id string) string {
	return ClassUser + "." + id
}

// ParseChannel splits a channel name into class and identifier.
func ParseChannel(channel string) (class, id string, ok bool) {
	class, id, ok = strings.Cut(channel, ".")
	if !ok || id == "" {
		return "", "", false
	}
	switch class {
	case ClassConversation, ClassDepartment, ClassUser:
		return class, id, true
	}
	return "", "", false
}

// Publisher delivers an event payload to one logical channel. The NATS
// implementation lives in this package; tests substitute a fake.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// ConversationSummary is the redacted conversation projection attached to
// received-message events.
type ConversationSummary struct {
	ID           string                   `json:"id"`
	ContactName  string                   `json:"contact_name"`
	ContactPhone string                   `json:"contact_phone"`
	Status       model.ConversationStatus `json:"status"`
}

// SenderSummary is the redacted sender projection attached to sent-message
// events.
type SenderSummary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

// MessagePayload is the redacted message projection published to channels.
// Only display fields, never credentials.
type MessagePayload struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversation_id"`
	Direction      model.Direction      `json:"direction"`
	Type           model.ContentType    `json:"type"`
	Content        *string              `json:"content"`
	MediaURL       *string              `json:"media_url"`
	Status         model.MessageStatus  `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	Conversation   *ConversationSummary `json:"conversation,omitempty"`
	SenderID       *string              `json:"sender_id,omitempty"`
	Sender         *SenderSummary       `json:"sender,omitempty"`
}

// Router computes target channels for state changes and publishes redacted
// projections to them.
type Router struct {
	pub    Publisher
	logger *logger.Logger
}

// NewRouter creates a router over a publisher.
func NewRouter(pub Publisher, log *logger.Logger) *Router {
	return &Router{pub: pub, logger: log.With("component", "realtime")}
}

// MessageReceived publishes an inbound message to the conversation and
// department channels.
func (r *Router) MessageReceived(ctx context.Context, msg *model.Message, conv *model.Conversation) {
	payload := MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Direction:      msg.Direction,
		Type:           msg.Type,
		Content:        msg.Content,
		MediaURL:       msg.MediaURL,
		Status:         msg.Status,
		CreatedAt:      msg.CreatedAt,
		Conversation: &ConversationSummary{
			ID:           conv.ID,
			ContactName:  conv.ContactName,
			ContactPhone: conv.ContactPhone,
			Status:       conv.Status,
		},
	}
	r.publish(ctx, EventMessageReceived, conv, payload)
}

// MessageSent publishes an outbound message to the conversation and
// department channels, including the sender projection.
func (r *Router) MessageSent(ctx context.Context, msg *model.Message, conv *model.Conversation, sender *model.User) {
	payload := MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Direction:      msg.Direction,
		Type:           msg.Type,
		Content:        msg.Content,
		MediaURL:       msg.MediaURL,
		Status:         msg.Status,
		CreatedAt:      msg.CreatedAt,
		SenderID:       msg.SenderID,
	}
	if sender != nil {
		payload.Sender = &SenderSummary{
			ID:     sender.ID,
			Name:   sender.Name,
			Avatar: sender.Avatar,
		}
	}
	r.publish(ctx, EventMessageSent, conv, payload)
}

// Channels returns the channel set a message event for the conversation
// fans out to: the conversation's own channel and its department's channel.
func Channels(conv *model.Conversation) []string {
	return []string{
		ConversationChannel(conv.ID),
		DepartmentChannel(conv.DepartmentID),
	}
}

func (r *Router) publish(ctx context.Context, event string, conv *model.Conversation, payload MessagePayload) {
	for _, channel := range Channels(conv) {
		class, _, _ := ParseChannel(channel)
		if err := r.pub.Publish(ctx, channel, event, payload); err != nil {
			// Fan-out is best effort: a publish failure never fails the
			// state mutation that triggered it.
			r.logger.Errorw("failed to publish realtime event",
				"event", event, "channel", channel, "error", err)
			continue
		}
		metrics.RealtimePublishesTotal.WithLabelValues(class, event).Inc()
	}
}
