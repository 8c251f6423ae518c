package whatsapp

import (
	"github.com/hafizrazali90/team-inbox/internal/model"
)

// WebhookPayload is the raw webhook delivery shape from the provider. Every
// field is optional in practice; the provider sends heartbeat and structural
// variants that carry none of the expected nesting.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-level entry in a webhook payload.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one change notification inside an entry.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the actual message and status arrays.
type Value struct {
	MessagingProduct string          `json:"messaging_product"`
	Contacts         []Contact       `json:"contacts"`
	Messages         []RawMessage    `json:"messages"`
	Statuses         []RawStatus     `json:"statuses"`
}

// Contact is sender profile metadata attached to a message delivery.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// RawMedia is the provider's media attachment shape.
type RawMedia struct {
	URL      string `json:"url"`
	Link     string `json:"link"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

// RawMessage is one inbound message as delivered by the provider.
type RawMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *RawMedia `json:"image"`
	Video    *RawMedia `json:"video"`
	Document *RawMedia `json:"document"`
	Audio    *RawMedia `json:"audio"`
	Voice    *RawMedia `json:"voice"`
}

// RawStatus is one delivery status update as delivered by the provider.
type RawStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// Normalize converts a raw webhook payload into a flat sequence of inbound
// events. It is a pure transformation: malformed or unrecognized entries
// contribute zero events rather than errors, and each entry is normalized
// independently so one bad entry never drops its siblings.
func Normalize(p WebhookPayload) []model.InboundEvent {
	var events []model.InboundEvent

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			profileName := ""
			if len(value.Contacts) > 0 {
				profileName = value.Contacts[0].Profile.Name
			}

			for _, raw := range value.Messages {
				ev, ok := normalizeMessage(raw, profileName)
				if !ok {
					continue
				}
				events = append(events, ev)
			}

			for _, raw := range value.Statuses {
				status := model.MessageStatus(raw.Status)
				if raw.ID == "" || !status.Valid() {
					continue
				}
				events = append(events, model.StatusEvent{
					ProviderMessageID: raw.ID,
					Status:            status,
				})
			}
		}
	}

	return events
}

func normalizeMessage(raw RawMessage, profileName string) (model.MessageEvent, bool) {
	if raw.From == "" || raw.ID == "" {
		return model.MessageEvent{}, false
	}

	contentType := model.ContentType(raw.Type)
	if !contentType.Valid() {
		return model.MessageEvent{}, false
	}

	ev := model.MessageEvent{
		From:              raw.From,
		ProviderMessageID: raw.ID,
		Type:              contentType,
		ProfileName:       profileName,
	}

	switch contentType {
	case model.ContentText:
		if raw.Text == nil {
			return model.MessageEvent{}, false
		}
		ev.Body = raw.Text.Body
	default:
		media := mediaFor(raw, contentType)
		if media == nil {
			return model.MessageEvent{}, false
		}
		ev.MediaURL = media.URL
		if ev.MediaURL == "" {
			ev.MediaURL = media.Link
		}
		ev.MimeType = media.MimeType
		ev.Body = media.Caption
	}

	return ev, true
}

func mediaFor(raw RawMessage, t model.ContentType) *RawMedia {
	switch t {
	case model.ContentImage:
		return raw.Image
	case model.ContentVideo:
		return raw.Video
	case model.ContentDocument:
		return raw.Document
	case model.ContentAudio:
		return raw.Audio
	case model.ContentVoice:
		return raw.Voice
	}
	return nil
}
