package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the name of the inbox events stream.
	StreamName = "INBOX"

	// SubjectPrefix is the prefix for all inbox subjects. Logical channels
	// map onto subjects as inbox.<channel>, e.g. inbox.conversation.42.
	SubjectPrefix = "inbox"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the inbox stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// Create stream
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Realtime inbox events fanned out per conversation, department, and user",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// Subject returns the NATS subject for a logical channel.
func Subject(channel string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, channel)
}

// Publish publishes an event payload on a logical channel.
func (m *StreamManager) Publish(ctx context.Context, channel string, data []byte) error {
	_, err := m.client.JetStream().Publish(ctx, Subject(channel), data)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe delivers live events for a logical channel. JetStream-published
// messages still traverse their plain subjects, so a core subscription is
// enough for realtime fan-out.
func (m *StreamManager) Subscribe(channel string, cb func(data []byte)) (*nats.Subscription, error) {
	sub, err := m.client.Conn().Subscribe(Subject(channel), func(msg *nats.Msg) {
		cb(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	return sub, nil
}
