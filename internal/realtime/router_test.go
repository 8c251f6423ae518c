package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
)

type capturingPublisher struct {
	channels []string
	events   []string
	payloads []interface{}
	err      error
}

func (c *capturingPublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	if c.err != nil {
		return c.err
	}
	c.channels = append(c.channels, channel)
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
	return nil
}

func fixtureMessage() (*model.Message, *model.Conversation) {
	content := "hello"
	msg := &model.Message{
		ID:                "msg-1",
		ConversationID:    "conv-1",
		ProviderMessageID: "wamid.A",
		Direction:         model.DirectionInbound,
		Type:              model.ContentText,
		Content:           &content,
		Status:            model.StatusSent,
		CreatedAt:         time.Now().UTC(),
	}
	conv := &model.Conversation{
		ID:           "conv-1",
		WhatsAppID:   "60123456789",
		ContactName:  "Jane",
		ContactPhone: "60123456789",
		DepartmentID: "dept-1",
		Status:       model.ConversationOpen,
	}
	return msg, conv
}

func TestMessageReceivedFansOutToBothChannels(t *testing.T) {
	pub := &capturingPublisher{}
	router := NewRouter(pub, logger.NewNop())
	msg, conv := fixtureMessage()

	router.MessageReceived(context.Background(), msg, conv)

	assert.Equal(t, []string{"conversation.conv-1", "department.dept-1"}, pub.channels)
	assert.Equal(t, []string{EventMessageReceived, EventMessageReceived}, pub.events)

	payload, ok := pub.payloads[0].(MessagePayload)
	require.True(t, ok)
	assert.Equal(t, "msg-1", payload.ID)
	require.NotNil(t, payload.Conversation)
	assert.Equal(t, "Jane", payload.Conversation.ContactName)
	assert.Nil(t, payload.Sender)
}

func TestMessageSentIncludesSenderProjection(t *testing.T) {
	pub := &capturingPublisher{}
	router := NewRouter(pub, logger.NewNop())
	msg, conv := fixtureMessage()
	msg.Direction = model.DirectionOutbound
	senderID := "user-1"
	msg.SenderID = &senderID

	sender := &model.User{ID: "user-1", Name: "Amir", Email: "amir@example.com", Role: model.RoleAgent}

	router.MessageSent(context.Background(), msg, conv, sender)

	require.Len(t, pub.payloads, 2)
	payload := pub.payloads[0].(MessagePayload)
	require.NotNil(t, payload.Sender)
	assert.Equal(t, "Amir", payload.Sender.Name)
	// The sender projection never carries the email.
	assert.Equal(t, SenderSummary{ID: "user-1", Name: "Amir"}, *payload.Sender)
}

func TestPublishFailureIsBestEffort(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("nats down")}
	router := NewRouter(pub, logger.NewNop())
	msg, conv := fixtureMessage()

	// Must not panic or propagate; the mutation already happened.
	router.MessageReceived(context.Background(), msg, conv)
	assert.Empty(t, pub.channels)
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		channel string
		class   string
		id      string
		ok      bool
	}{
		{"conversation.42", ClassConversation, "42", true},
		{"department.cx", ClassDepartment, "cx", true},
		{"user.abc-def", ClassUser, "abc-def", true},
		{"conversation.", "", "", false},
		{"conversation", "", "", false},
		{"presence.42", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		class, id, ok := ParseChannel(tt.channel)
		assert.Equal(t, tt.ok, ok, tt.channel)
		assert.Equal(t, tt.class, class, tt.channel)
		assert.Equal(t, tt.id, id, tt.channel)
	}
}
