package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/internal/store"
)

func seedAuthFixtures(t *testing.T) (*store.Memory, *model.Conversation, *model.Department) {
	t.Helper()
	mem := store.NewMemory()
	dept := mem.AddDepartment(model.Department{Name: "Customer Experience", Slug: "cx"})

	conv, _, err := mem.UpsertConversation(context.Background(), "60123456789", model.ConversationDefaults{
		ContactName:  "Jane",
		ContactPhone: "60123456789",
		DepartmentID: dept.ID,
	})
	require.NoError(t, err)
	return mem, conv, dept
}

func user(role model.Role, deptID string) *model.User {
	return &model.User{ID: "user-" + string(role), Role: role, DepartmentID: deptID, Active: true}
}

func TestCanJoinConversationChannel(t *testing.T) {
	mem, conv, dept := seedAuthFixtures(t)
	auth := NewAuthorizer(mem)
	ctx := context.Background()
	channel := ConversationChannel(conv.ID)

	tests := []struct {
		name string
		user *model.User
		want bool
	}{
		{"admin always", user(model.RoleAdmin, "other-dept"), true},
		{"operation manager always", user(model.RoleOperationManager, "other-dept"), true},
		{"manager same department", user(model.RoleManager, dept.ID), true},
		{"manager other department", user(model.RoleManager, "other-dept"), false},
		{"assistant manager same department", user(model.RoleAssistantManager, dept.ID), true},
		{"agent unassigned", user(model.RoleAgent, dept.ID), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.CanJoin(ctx, tt.user, channel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanJoinConversationChannelAssignedAgent(t *testing.T) {
	mem, conv, dept := seedAuthFixtures(t)
	auth := NewAuthorizer(mem)
	ctx := context.Background()

	agent := user(model.RoleAgent, dept.ID)
	other := &model.User{ID: "other-agent", Role: model.RoleAgent, DepartmentID: dept.ID, Active: true}

	_, err := mem.AssignConversation(ctx, conv.ID, agent.ID)
	require.NoError(t, err)

	ok, err := auth.CanJoin(ctx, agent, ConversationChannel(conv.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CanJoin(ctx, other, ConversationChannel(conv.ID))
	require.NoError(t, err)
	assert.False(t, ok)

	// Reassignment revokes the previous agent on the next join attempt.
	_, err = mem.AssignConversation(ctx, conv.ID, other.ID)
	require.NoError(t, err)

	ok, err = auth.CanJoin(ctx, agent, ConversationChannel(conv.ID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanJoinDepartmentChannel(t *testing.T) {
	mem, _, dept := seedAuthFixtures(t)
	auth := NewAuthorizer(mem)
	ctx := context.Background()
	channel := DepartmentChannel(dept.ID)

	ok, err := auth.CanJoin(ctx, user(model.RoleAdmin, "elsewhere"), channel)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CanJoin(ctx, user(model.RoleManager, dept.ID), channel)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CanJoin(ctx, user(model.RoleAgent, dept.ID), channel)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CanJoin(ctx, user(model.RoleManager, "elsewhere"), channel)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanJoinUserChannel(t *testing.T) {
	mem, _, dept := seedAuthFixtures(t)
	auth := NewAuthorizer(mem)
	ctx := context.Background()

	me := user(model.RoleAgent, dept.ID)

	ok, err := auth.CanJoin(ctx, me, UserChannel(me.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	// Even an admin cannot join someone else's personal channel.
	ok, err = auth.CanJoin(ctx, user(model.RoleAdmin, dept.ID), UserChannel(me.ID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanJoinUnknownChannel(t *testing.T) {
	mem, conv, _ := seedAuthFixtures(t)
	auth := NewAuthorizer(mem)
	ctx := context.Background()
	admin := user(model.RoleAdmin, "")

	for _, channel := range []string{"", "conversation", "conversation.", "presence." + conv.ID, "bogus"} {
		ok, err := auth.CanJoin(ctx, admin, channel)
		require.NoError(t, err)
		assert.False(t, ok, "channel %q", channel)
	}
}

func TestCanJoinDeletedConversation(t *testing.T) {
	mem, conv, dept := seedAuthFixtures(t)
	auth := NewAuthorizer(mem)
	ctx := context.Background()

	require.NoError(t, mem.SoftDeleteConversation(ctx, conv.ID))

	ok, err := auth.CanJoin(ctx, user(model.RoleManager, dept.ID), ConversationChannel(conv.ID))
	require.NoError(t, err)
	assert.False(t, ok)
}
