// Package service provides business logic for the team inbox: webhook
// ingestion, outbound dispatch, and conversation operations.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hafizrazali90/team-inbox/internal/ai"
	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/realtime"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
	"github.com/hafizrazali90/team-inbox/pkg/metrics"
)

// Inbox reconciles normalized webhook events into conversation and message
// state. All operations are idempotent and order-tolerant: the provider
// delivers at least once and out of order.
type Inbox struct {
	store           store.Store
	router          *realtime.Router
	responder       ai.Responder
	defaultDeptSlug string
	logger          *logger.Logger
}

// NewInbox creates the ingestion service. A nil responder disables the AI
// hook.
func NewInbox(st store.Store, router *realtime.Router, responder ai.Responder, defaultDeptSlug string, log *logger.Logger) *Inbox {
	return &Inbox{
		store:           st,
		router:          router,
		responder:       responder,
		defaultDeptSlug: defaultDeptSlug,
		logger:          log.With("component", "inbox"),
	}
}

// Process applies a batch of normalized events in order. Each event is
// processed independently: a failure is logged and counted but never aborts
// the remaining events.
func (s *Inbox) Process(ctx context.Context, events []model.InboundEvent) {
	for _, ev := range events {
		switch e := ev.(type) {
		case model.MessageEvent:
			if _, err := s.IngestInbound(ctx, e); err != nil {
				metrics.WebhookEventsTotal.WithLabelValues("message", "error").Inc()
				s.logger.Errorw("failed to ingest inbound message",
					"provider_message_id", e.ProviderMessageID, "error", err)
				continue
			}
			metrics.WebhookEventsTotal.WithLabelValues("message", "ok").Inc()
		case model.StatusEvent:
			if _, err := s.ApplyStatus(ctx, e); err != nil {
				metrics.WebhookEventsTotal.WithLabelValues("status", "error").Inc()
				s.logger.Errorw("failed to apply status event",
					"provider_message_id", e.ProviderMessageID, "error", err)
				continue
			}
			metrics.WebhookEventsTotal.WithLabelValues("status", "ok").Inc()
		}
	}
}

// IngestInbound resolves or lazily creates the conversation for the event's
// contact and inserts the message keyed by its provider id. Re-delivery of
// an already-stored message returns the existing row without repeating any
// side effects. A closed conversation stays closed: reopening is an
// explicit agent action, never implicit on inbound traffic.
func (s *Inbox) IngestInbound(ctx context.Context, ev model.MessageEvent) (*model.Message, error) {
	dept, err := s.store.DepartmentBySlug(ctx, s.defaultDeptSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default department: %w", err)
	}

	contactName := ev.ProfileName
	if contactName == "" {
		contactName = "Unknown"
	}

	conv, created, err := s.store.UpsertConversation(ctx, ev.From, model.ConversationDefaults{
		ContactName:  contactName,
		ContactPhone: ev.From,
		DepartmentID: dept.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}
	if created {
		metrics.ConversationsCreated.WithLabelValues(dept.Slug).Inc()
		s.logger.Infow("conversation created", "conversation_id", conv.ID, "whatsapp_id", ev.From)
	}

	msg := &model.Message{
		ConversationID:    conv.ID,
		ProviderMessageID: ev.ProviderMessageID,
		Direction:         model.DirectionInbound,
		Type:              ev.Type,
		Status:            model.StatusSent,
	}
	if ev.Body != "" {
		body := ev.Body
		msg.Content = &body
	}
	if ev.MediaURL != "" {
		url := ev.MediaURL
		msg.MediaURL = &url
	}
	if ev.MimeType != "" {
		mime := ev.MimeType
		msg.MimeType = &mime
	}

	stored, inserted, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if !inserted {
		// Duplicate delivery: the first delivery already ran the side
		// effects below.
		return stored, nil
	}

	if err := s.store.TouchConversation(ctx, conv.ID, stored.CreatedAt); err != nil {
		s.logger.Warnw("failed to touch conversation", "conversation_id", conv.ID, "error", err)
	}

	metrics.MessagesIngested.WithLabelValues(dept.Slug, string(stored.Type)).Inc()
	s.router.MessageReceived(ctx, stored, conv)

	if s.responder != nil && conv.AssignedTo == nil {
		s.responder.HandleInbound(ctx, conv, stored)
	}

	s.logger.Infow("inbound message processed",
		"conversation_id", conv.ID, "message_id", stored.ID,
		"provider_message_id", stored.ProviderMessageID)

	return stored, nil
}

// ApplyStatus advances a message's delivery status. A status event for an
// unknown provider id is a benign race (the status can arrive before the
// message is visible) and yields a nil message with no error. Duplicate or
// regressive events are no-ops.
func (s *Inbox) ApplyStatus(ctx context.Context, ev model.StatusEvent) (*model.Message, error) {
	msg, advanced, err := s.store.AdvanceMessageStatus(ctx, ev.ProviderMessageID, ev.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to advance message status: %w", err)
	}
	if msg == nil {
		metrics.StatusUpdatesTotal.WithLabelValues(string(ev.Status), "orphan").Inc()
		s.logger.Debugw("status event for unknown message",
			"provider_message_id", ev.ProviderMessageID, "status", ev.Status)
		return nil, nil
	}
	if !advanced {
		metrics.StatusUpdatesTotal.WithLabelValues(string(ev.Status), "skipped").Inc()
		return msg, nil
	}

	metrics.StatusUpdatesTotal.WithLabelValues(string(ev.Status), "applied").Inc()
	s.logger.Infow("message status updated",
		"message_id", msg.ID, "status", msg.Status)

	return msg, nil
}

// RecordOutbound persists an already-sent outbound message and updates the
// conversation aggregates: last activity, response counter, and the
// first-response stamp which is set at most once.
func (s *Inbox) RecordOutbound(ctx context.Context, conv *model.Conversation, sender *model.User, spec model.ContentSpec, providerMessageID string) (*model.Message, error) {
	now := time.Now().UTC()

	msg := &model.Message{
		ConversationID:    conv.ID,
		ProviderMessageID: providerMessageID,
		Direction:         model.DirectionOutbound,
		Type:              spec.Type,
		Status:            model.StatusSent,
	}
	if spec.Body != "" {
		body := spec.Body
		msg.Content = &body
	}
	if spec.MediaURL != "" {
		url := spec.MediaURL
		msg.MediaURL = &url
	}
	if spec.MimeType != "" {
		mime := spec.MimeType
		msg.MimeType = &mime
	}
	if sender != nil {
		id := sender.ID
		msg.SenderID = &id
	}

	stored, inserted, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to insert outbound message: %w", err)
	}
	if !inserted {
		return stored, nil
	}

	if _, err := s.store.RecordOutboundStats(ctx, conv.ID, now); err != nil {
		s.logger.Warnw("failed to update conversation stats", "conversation_id", conv.ID, "error", err)
	}

	return stored, nil
}
