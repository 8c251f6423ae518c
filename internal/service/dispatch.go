package service

import (
	"context"
	"fmt"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/realtime"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
	"github.com/hafizrazali90/team-inbox/pkg/metrics"
)

// ProviderClient sends one message to a contact address and returns the
// provider-assigned message id.
type ProviderClient interface {
	Send(ctx context.Context, to string, spec model.ContentSpec) (string, error)
}

// Dispatcher sends agent-authored messages through the provider. A failed
// provider call persists nothing and surfaces the provider's diagnostic to
// the caller; nothing is retried here.
type Dispatcher struct {
	store    store.Store
	provider ProviderClient
	inbox    *Inbox
	router   *realtime.Router
	logger   *logger.Logger
}

// NewDispatcher creates the outbound dispatch service.
func NewDispatcher(st store.Store, provider ProviderClient, inbox *Inbox, router *realtime.Router, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:    st,
		provider: provider,
		inbox:    inbox,
		router:   router,
		logger:   log.With("component", "dispatcher"),
	}
}

// Send dispatches one message on a conversation. Preconditions are checked
// before any external call; the provider call happens synchronously; only a
// successful send is persisted, keyed by the provider-returned id so later
// status events reconcile against it.
func (d *Dispatcher) Send(ctx context.Context, conversationID string, sender *model.User, spec model.ContentSpec) (*model.Message, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	conv, err := d.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	providerMessageID, err := d.provider.Send(ctx, conv.ContactPhone, spec)
	if err != nil {
		metrics.MessagesDispatched.WithLabelValues(string(spec.Type), "provider_error").Inc()
		d.logger.Errorw("provider send failed",
			"conversation_id", conv.ID, "type", spec.Type, "error", err)
		return nil, fmt.Errorf("provider send failed: %w", err)
	}

	msg, err := d.inbox.RecordOutbound(ctx, conv, sender, spec, providerMessageID)
	if err != nil {
		// The provider accepted the message but local persistence failed;
		// the send itself is not repeated.
		metrics.MessagesDispatched.WithLabelValues(string(spec.Type), "store_error").Inc()
		return nil, err
	}

	metrics.MessagesDispatched.WithLabelValues(string(spec.Type), "ok").Inc()
	d.router.MessageSent(ctx, msg, conv, sender)

	d.logger.Infow("message dispatched",
		"conversation_id", conv.ID, "message_id", msg.ID,
		"provider_message_id", providerMessageID)

	return msg, nil
}
