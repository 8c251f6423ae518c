// Package ai defines the hook for an automated agent. The response logic
// itself lives outside this service; only the integration point is defined
// here.
package ai

import (
	"context"

	"github.com/hafizrazali90/team-inbox/internal/model"
)

// Responder is invoked after an inbound message lands on a conversation
// with no assigned agent. Implementations must not block ingestion.
type Responder interface {
	HandleInbound(ctx context.Context, conv *model.Conversation, msg *model.Message)
}

// Noop is the default responder; it does nothing.
type Noop struct{}

// HandleInbound implements Responder.
func (Noop) HandleInbound(ctx context.Context, conv *model.Conversation, msg *model.Message) {}
