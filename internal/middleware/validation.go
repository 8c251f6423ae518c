package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageContent validates outbound text content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 65536 {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateChannelName validates a realtime channel name's length and
// character set; the class/id structure is checked by the realtime package.
func ValidateChannelName(channel string) error {
	if len(channel) == 0 {
		return errors.New("channel cannot be empty")
	}
	if len(channel) > 128 {
		return errors.New("channel exceeds maximum length")
	}
	return nil
}
