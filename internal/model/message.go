package model

import (
	"errors"
	"time"
)

// Direction indicates which party authored a message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ContentType represents the kind of content a message carries.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
	ContentAudio    ContentType = "audio"
	ContentVoice    ContentType = "voice"
)

// Valid reports whether the content type is known.
func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentImage, ContentVideo, ContentDocument, ContentAudio, ContentVoice:
		return true
	}
	return false
}

// MessageStatus represents provider delivery state.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Valid reports whether the status is known.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// statusRank orders the delivery progression sent -> delivered -> read.
// Failed sits outside the progression and is handled separately.
var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// CanAdvance reports whether a status event may move a message from one
// delivery state to another. The progression is a monotonic union: once a
// later state is recorded, earlier states arriving out of order are ignored.
// Failed is only reachable from sent.
func CanAdvance(from, to MessageStatus) bool {
	if from == to {
		return false
	}
	if to == StatusFailed {
		return from == StatusSent
	}
	if from == StatusFailed {
		return false
	}
	return statusRank[to] > statusRank[from]
}

// Message is one inbound or outbound unit of communication. The provider
// message identifier is globally unique and serves as the idempotency key
// for ingestion and status reconciliation.
type Message struct {
	ID                string        `json:"id"`
	ConversationID    string        `json:"conversation_id"`
	ProviderMessageID string        `json:"whatsapp_message_id"`
	Direction         Direction     `json:"direction"`
	Type              ContentType   `json:"type"`
	Content           *string       `json:"content,omitempty"`
	MediaURL          *string       `json:"media_url,omitempty"`
	MimeType          *string       `json:"mime_type,omitempty"`
	SenderID          *string       `json:"sender_id,omitempty"`
	Status            MessageStatus `json:"status"`
	ReadAt            *time.Time    `json:"read_at,omitempty"`
	AIGenerated       bool          `json:"is_ai_generated"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ContentSpec describes outbound message content: either a text body or a
// media reference plus content type.
type ContentSpec struct {
	Type     ContentType `json:"type"`
	Body     string      `json:"content,omitempty"`
	MediaURL string      `json:"media_url,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
}

var (
	// ErrEmptyBody indicates a text spec without a body.
	ErrEmptyBody = errors.New("text message requires a body")
	// ErrMissingMedia indicates a media spec without a media reference.
	ErrMissingMedia = errors.New("media message requires a media url")
	// ErrUnknownContentType indicates an unsupported content type.
	ErrUnknownContentType = errors.New("unknown content type")
)

// Validate checks the spec's preconditions before any provider call.
func (s ContentSpec) Validate() error {
	if !s.Type.Valid() {
		return ErrUnknownContentType
	}
	if s.Type == ContentText {
		if s.Body == "" {
			return ErrEmptyBody
		}
		return nil
	}
	if s.MediaURL == "" {
		return ErrMissingMedia
	}
	return nil
}

// SendMessageRequest is the agent-facing request to dispatch a message.
type SendMessageRequest struct {
	ConversationID string      `json:"conversation_id"`
	Type           ContentType `json:"type"`
	Content        string      `json:"content,omitempty"`
	MediaURL       string      `json:"media_url,omitempty"`
	MimeType       string      `json:"mime_type,omitempty"`
}

// Spec converts the request into a validated content spec.
func (r SendMessageRequest) Spec() ContentSpec {
	return ContentSpec{
		Type:     r.Type,
		Body:     r.Content,
		MediaURL: r.MediaURL,
		MimeType: r.MimeType,
	}
}
