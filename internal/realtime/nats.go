package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsclient "github.com/hafizrazali90/team-inbox/internal/nats"
)

// Envelope is the wire shape published to subscribers.
type Envelope struct {
	Event     string          `json:"event"`
	Channel   string          `json:"channel"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NATSPublisher publishes channel events through JetStream.
type NATSPublisher struct {
	streams *natsclient.StreamManager
}

// NewNATSPublisher creates a publisher over the stream manager.
func NewNATSPublisher(streams *natsclient.StreamManager) *NATSPublisher {
	return &NATSPublisher{streams: streams}
}

// Publish marshals the payload into an envelope and publishes it on the
// channel's subject.
func (p *NATSPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	envelope, err := json.Marshal(Envelope{
		Event:     event,
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return p.streams.Publish(ctx, channel, envelope)
}
