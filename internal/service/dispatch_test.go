package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/realtime"
	"github.com/hafizrazali90/team-inbox/internal/store"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
)

// fakeProvider simulates the WhatsApp send API.
type fakeProvider struct {
	id    string
	err   error
	calls int
	lastTo string
}

func (f *fakeProvider) Send(ctx context.Context, to string, spec model.ContentSpec) (string, error) {
	f.calls++
	f.lastTo = to
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func newTestDispatcher(t *testing.T, provider *fakeProvider) (*Dispatcher, *store.Memory, *fakePublisher, *model.Conversation, *model.User) {
	t.Helper()
	mem := store.NewMemory()
	dept := mem.AddDepartment(model.Department{Name: "Customer Experience", Slug: "cx"})
	agent := mem.AddUser(model.User{Name: "Amir", Role: model.RoleAgent, DepartmentID: dept.ID, Active: true})

	conv, _, err := mem.UpsertConversation(context.Background(), "60123456789", model.ConversationDefaults{
		ContactName:  "Jane",
		ContactPhone: "60123456789",
		DepartmentID: dept.ID,
	})
	require.NoError(t, err)

	pub := &fakePublisher{}
	router := realtime.NewRouter(pub, logger.NewNop())
	inbox := NewInbox(mem, router, nil, "cx", logger.NewNop())
	dispatcher := NewDispatcher(mem, provider, inbox, router, logger.NewNop())

	return dispatcher, mem, pub, conv, agent
}

func TestDispatcherSendText(t *testing.T) {
	provider := &fakeProvider{id: "wamid.OUT1"}
	dispatcher, mem, pub, conv, agent := newTestDispatcher(t, provider)
	ctx := context.Background()

	msg, err := dispatcher.Send(ctx, conv.ID, agent, model.ContentSpec{
		Type: model.ContentText,
		Body: "how can I help?",
	})
	require.NoError(t, err)
	assert.Equal(t, "60123456789", provider.lastTo)
	assert.Equal(t, "wamid.OUT1", msg.ProviderMessageID)
	assert.Equal(t, model.DirectionOutbound, msg.Direction)
	assert.Equal(t, model.StatusSent, msg.Status)
	require.NotNil(t, msg.SenderID)
	assert.Equal(t, agent.ID, *msg.SenderID)

	// Conversation aggregates move with the send.
	updated, err := mem.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ResponseCount)
	assert.NotNil(t, updated.FirstResponseAt)

	records := pub.all()
	require.Len(t, records, 2)
	assert.Equal(t, realtime.EventMessageSent, records[0].Event)
}

func TestDispatcherProviderFailurePersistsNothing(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection reset")}
	dispatcher, mem, pub, conv, agent := newTestDispatcher(t, provider)
	ctx := context.Background()

	_, err := dispatcher.Send(ctx, conv.ID, agent, model.ContentSpec{
		Type: model.ContentText,
		Body: "hello?",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider send failed")

	msgs, err := mem.ListMessages(ctx, conv.ID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	updated, err := mem.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.ResponseCount)
	assert.Nil(t, updated.FirstResponseAt)

	assert.Empty(t, pub.all())
}

func TestDispatcherInvalidSpecSkipsProvider(t *testing.T) {
	provider := &fakeProvider{id: "wamid.OUT"}
	dispatcher, _, _, conv, agent := newTestDispatcher(t, provider)

	_, err := dispatcher.Send(context.Background(), conv.ID, agent, model.ContentSpec{
		Type: model.ContentText,
	})
	assert.ErrorIs(t, err, model.ErrEmptyBody)
	assert.Zero(t, provider.calls)

	_, err = dispatcher.Send(context.Background(), conv.ID, agent, model.ContentSpec{
		Type: model.ContentImage,
	})
	assert.ErrorIs(t, err, model.ErrMissingMedia)
	assert.Zero(t, provider.calls)
}

func TestDispatcherUnknownConversation(t *testing.T) {
	provider := &fakeProvider{id: "wamid.OUT"}
	dispatcher, _, _, _, agent := newTestDispatcher(t, provider)

	_, err := dispatcher.Send(context.Background(), "00000000-0000-0000-0000-000000000000", agent, model.ContentSpec{
		Type: model.ContentText,
		Body: "x",
	})
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
	assert.Zero(t, provider.calls)
}

func TestDispatcherStatusReconciliation(t *testing.T) {
	provider := &fakeProvider{id: "wamid.OUT9"}
	dispatcher, mem, _, conv, agent := newTestDispatcher(t, provider)
	ctx := context.Background()

	sent, err := dispatcher.Send(ctx, conv.ID, agent, model.ContentSpec{
		Type: model.ContentText,
		Body: "checking in",
	})
	require.NoError(t, err)

	// A later status webhook reconciles against the provider id.
	msg, advanced, err := mem.AdvanceMessageStatus(ctx, "wamid.OUT9", model.StatusDelivered)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, sent.ID, msg.ID)
	assert.Equal(t, model.StatusDelivered, msg.Status)
}
