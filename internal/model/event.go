package model

// InboundEvent is a normalized webhook event: either a new message or a
// delivery status update.
type InboundEvent interface {
	inboundEvent()
}

// MessageEvent is a normalized inbound message from an external contact.
type MessageEvent struct {
	// From is the contact's WhatsApp identifier (also the phone address).
	From string
	// ProviderMessageID is the provider-assigned id, the idempotency key.
	ProviderMessageID string
	Type              ContentType
	Body              string
	MediaURL          string
	MimeType          string
	// ProfileName is the sender's display name from contact metadata.
	ProfileName string
}

func (MessageEvent) inboundEvent() {}

// StatusEvent is a normalized delivery status update for an outbound message.
type StatusEvent struct {
	ProviderMessageID string
	Status            MessageStatus
}

func (StatusEvent) inboundEvent() {}
