package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/realtime"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
)

type publishRecord struct {
	Channel string
	Event   string
	Payload interface{}
}

// fakePublisher records realtime publishes for assertions.
type fakePublisher struct {
	mu      sync.Mutex
	records []publishRecord
}

func (f *fakePublisher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, publishRecord{Channel: channel, Event: event, Payload: payload})
	return nil
}

func (f *fakePublisher) all() []publishRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishRecord(nil), f.records...)
}

type recordingResponder struct {
	calls int
}

func (r *recordingResponder) HandleInbound(ctx context.Context, conv *model.Conversation, msg *model.Message) {
	r.calls++
}

func newTestInbox(t *testing.T) (*Inbox, *store.Memory, *fakePublisher, *recordingResponder) {
	t.Helper()
	mem := store.NewMemory()
	mem.AddDepartment(model.Department{Name: "Customer Experience", Slug: "cx"})

	pub := &fakePublisher{}
	router := realtime.NewRouter(pub, logger.NewNop())
	responder := &recordingResponder{}

	inbox := NewInbox(mem, router, responder, "cx", logger.NewNop())
	return inbox, mem, pub, responder
}

func janeEvent() model.MessageEvent {
	return model.MessageEvent{
		From:              "60123456789",
		ProviderMessageID: "wamid.A",
		Type:              model.ContentText,
		Body:              "hello",
		ProfileName:       "Jane",
	}
}

func TestIngestInboundCreatesConversation(t *testing.T) {
	inbox, mem, pub, responder := newTestInbox(t)
	ctx := context.Background()

	msg, err := inbox.IngestInbound(ctx, janeEvent())
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "wamid.A", msg.ProviderMessageID)
	assert.Equal(t, model.DirectionInbound, msg.Direction)
	assert.Equal(t, model.StatusSent, msg.Status)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hello", *msg.Content)

	conv, err := mem.GetConversation(ctx, msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "60123456789", conv.WhatsAppID)
	assert.Equal(t, "Jane", conv.ContactName)
	assert.Equal(t, model.ConversationOpen, conv.Status)

	// Fan-out targets the conversation channel and the department channel.
	records := pub.all()
	require.Len(t, records, 2)
	assert.Equal(t, realtime.ConversationChannel(conv.ID), records[0].Channel)
	assert.Equal(t, realtime.DepartmentChannel(conv.DepartmentID), records[1].Channel)
	assert.Equal(t, realtime.EventMessageReceived, records[0].Event)

	// Unassigned conversation invokes the AI hook.
	assert.Equal(t, 1, responder.calls)
}

func TestIngestInboundDuplicateSkipsSideEffects(t *testing.T) {
	inbox, _, pub, responder := newTestInbox(t)
	ctx := context.Background()

	first, err := inbox.IngestInbound(ctx, janeEvent())
	require.NoError(t, err)

	second, err := inbox.IngestInbound(ctx, janeEvent())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// The re-delivery publishes nothing and does not re-invoke the hook.
	assert.Len(t, pub.all(), 2)
	assert.Equal(t, 1, responder.calls)
}

func TestIngestInboundUnknownContactName(t *testing.T) {
	inbox, mem, _, _ := newTestInbox(t)
	ctx := context.Background()

	ev := janeEvent()
	ev.ProfileName = ""

	msg, err := inbox.IngestInbound(ctx, ev)
	require.NoError(t, err)

	conv, err := mem.GetConversation(ctx, msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", conv.ContactName)
}

func TestIngestInboundClosedConversationStaysClosed(t *testing.T) {
	inbox, mem, _, _ := newTestInbox(t)
	ctx := context.Background()

	first, err := inbox.IngestInbound(ctx, janeEvent())
	require.NoError(t, err)

	_, err = mem.SetConversationStatus(ctx, first.ConversationID, model.ConversationClosed)
	require.NoError(t, err)

	ev := janeEvent()
	ev.ProviderMessageID = "wamid.B"
	ev.Body = "are you still there?"

	second, err := inbox.IngestInbound(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	conv, err := mem.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationClosed, conv.Status)
}

func TestIngestInboundAssignedSkipsResponder(t *testing.T) {
	inbox, mem, _, responder := newTestInbox(t)
	ctx := context.Background()

	first, err := inbox.IngestInbound(ctx, janeEvent())
	require.NoError(t, err)
	assert.Equal(t, 1, responder.calls)

	agent := mem.AddUser(model.User{Name: "Amir", Role: model.RoleAgent, Active: true})
	_, err = mem.AssignConversation(ctx, first.ConversationID, agent.ID)
	require.NoError(t, err)

	ev := janeEvent()
	ev.ProviderMessageID = "wamid.C"
	_, err = inbox.IngestInbound(ctx, ev)
	require.NoError(t, err)

	// An assigned conversation is a human's; the hook stays quiet.
	assert.Equal(t, 1, responder.calls)
}

func TestApplyStatusOutOfOrder(t *testing.T) {
	inbox, _, _, _ := newTestInbox(t)
	ctx := context.Background()

	msg, err := inbox.IngestInbound(ctx, janeEvent())
	require.NoError(t, err)

	// sent, read, delivered arriving in that order settles on read.
	for _, status := range []model.MessageStatus{model.StatusSent, model.StatusRead, model.StatusDelivered} {
		_, err := inbox.ApplyStatus(ctx, model.StatusEvent{
			ProviderMessageID: msg.ProviderMessageID,
			Status:            status,
		})
		require.NoError(t, err)
	}

	final, err := inbox.ApplyStatus(ctx, model.StatusEvent{
		ProviderMessageID: msg.ProviderMessageID,
		Status:            model.StatusDelivered,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, final.Status)
	assert.NotNil(t, final.ReadAt)
}

func TestApplyStatusOrphanIsBenign(t *testing.T) {
	inbox, _, _, _ := newTestInbox(t)

	msg, err := inbox.ApplyStatus(context.Background(), model.StatusEvent{
		ProviderMessageID: "wamid.NEVER_SEEN",
		Status:            model.StatusDelivered,
	})
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestProcessContinuesPastFailures(t *testing.T) {
	inbox, mem, _, _ := newTestInbox(t)
	ctx := context.Background()

	// A status for an unknown message followed by a valid message: the batch
	// still lands the message.
	inbox.Process(ctx, []model.InboundEvent{
		model.StatusEvent{ProviderMessageID: "wamid.NOPE", Status: model.StatusRead},
		janeEvent(),
	})

	_, err := mem.GetMessageByProviderID(ctx, "wamid.A")
	require.NoError(t, err)
}
