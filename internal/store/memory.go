package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hafizrazali90/team-inbox/internal/model"
)

// Memory is an in-process Store used for tests and development. All methods
// are safe for concurrent use; the single mutex stands in for the row-scoped
// atomicity the postgres implementation gets from its constraints.
type Memory struct {
	mu sync.RWMutex

	conversations   map[string]*model.Conversation
	conversationsBy map[string]string // waID -> conversation id
	messages        map[string]*model.Message
	messagesBy      map[string]string // provider message id -> message id
	users           map[string]*model.User
	departments     map[string]*model.Department // slug -> department
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations:   make(map[string]*model.Conversation),
		conversationsBy: make(map[string]string),
		messages:        make(map[string]*model.Message),
		messagesBy:      make(map[string]string),
		users:           make(map[string]*model.User),
		departments:     make(map[string]*model.Department),
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// AddDepartment seeds a department.
func (m *Memory) AddDepartment(dept model.Department) *model.Department {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dept.ID == "" {
		dept.ID = newID()
	}
	d := dept
	m.departments[dept.Slug] = &d
	return &d
}

// AddUser seeds a user.
func (m *Memory) AddUser(user model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = newID()
	}
	u := user
	m.users[user.ID] = &u
	return &u
}

func (m *Memory) UpsertConversation(ctx context.Context, waID string, defaults model.ConversationDefaults) (*model.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.conversationsBy[waID]; ok {
		return cloneConversation(m.conversations[id]), false, nil
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:            newID(),
		WhatsAppID:    waID,
		ContactName:   defaults.ContactName,
		ContactPhone:  defaults.ContactPhone,
		DepartmentID:  defaults.DepartmentID,
		Status:        model.ConversationOpen,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.conversations[conv.ID] = conv
	m.conversationsBy[waID] = conv.ID

	return cloneConversation(conv), true, nil
}

func (m *Memory) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok || conv.DeletedAt != nil {
		return nil, ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (m *Memory) ListConversations(ctx context.Context, filter model.ConversationFilter) (*model.ListConversationsResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var convs []model.Conversation
	for _, conv := range m.conversations {
		if conv.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && conv.Status != filter.Status {
			continue
		}
		if filter.DepartmentID != "" && conv.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.AssignedTo != "" && (conv.AssignedTo == nil || *conv.AssignedTo != filter.AssignedTo) {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(conv.ContactName), needle) &&
				!strings.Contains(conv.ContactPhone, filter.Search) {
				continue
			}
		}
		convs = append(convs, *cloneConversation(conv))
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
	})

	total := len(convs)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &model.ListConversationsResponse{
		Conversations: convs[start:end],
		Total:         total,
		HasMore:       end < total,
	}, nil
}

func (m *Memory) TouchConversation(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conv.LastMessageAt = at
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) RecordOutboundStats(ctx context.Context, id string, at time.Time) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	conv.LastMessageAt = at
	conv.ResponseCount++
	if conv.FirstResponseAt == nil {
		stamp := at
		conv.FirstResponseAt = &stamp
	}
	conv.UpdatedAt = time.Now().UTC()
	return cloneConversation(conv), nil
}

func (m *Memory) SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	conv.Status = status
	conv.UpdatedAt = time.Now().UTC()
	return cloneConversation(conv), nil
}

func (m *Memory) AssignConversation(ctx context.Context, id, userID string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	conv.AssignedTo = &userID
	conv.Status = model.ConversationOpen
	conv.UpdatedAt = time.Now().UTC()
	return cloneConversation(conv), nil
}

func (m *Memory) SetFollowUp(ctx context.Context, id string, at time.Time) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	stamp := at
	conv.FollowUpAt = &stamp
	conv.UpdatedAt = time.Now().UTC()
	return cloneConversation(conv), nil
}

func (m *Memory) SoftDeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	now := time.Now().UTC()
	conv.DeletedAt = &now
	conv.UpdatedAt = now
	return nil
}

func (m *Memory) InsertMessage(ctx context.Context, msg *model.Message) (*model.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.messagesBy[msg.ProviderMessageID]; ok {
		return cloneMessage(m.messages[id]), false, nil
	}

	stored := *msg
	if stored.ID == "" {
		stored.ID = newID()
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	m.messages[stored.ID] = &stored
	m.messagesBy[stored.ProviderMessageID] = stored.ID

	return cloneMessage(&stored), true, nil
}

func (m *Memory) GetMessageByProviderID(ctx context.Context, providerMessageID string) (*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.messagesBy[providerMessageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return cloneMessage(m.messages[id]), nil
}

func (m *Memory) AdvanceMessageStatus(ctx context.Context, providerMessageID string, status model.MessageStatus) (*model.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.messagesBy[providerMessageID]
	if !ok {
		return nil, false, nil
	}

	msg := m.messages[id]
	if !model.CanAdvance(msg.Status, status) {
		return cloneMessage(msg), false, nil
	}

	msg.Status = status
	now := time.Now().UTC()
	if status == model.StatusRead && msg.ReadAt == nil {
		stamp := now
		msg.ReadAt = &stamp
	}
	msg.UpdatedAt = now

	return cloneMessage(msg), true, nil
}

func (m *Memory) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var msgs []model.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			msgs = append(msgs, *cloneMessage(msg))
		}
	}

	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	if limit <= 0 {
		limit = 50
	}
	if offset > len(msgs) {
		offset = len(msgs)
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}

	return msgs[offset:end], nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (m *Memory) DepartmentBySlug(ctx context.Context, slug string) (*model.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dept, ok := m.departments[slug]
	if !ok {
		return nil, ErrDepartmentNotFound
	}
	d := *dept
	return &d, nil
}

func cloneConversation(conv *model.Conversation) *model.Conversation {
	c := *conv
	return &c
}

func cloneMessage(msg *model.Message) *model.Message {
	c := *msg
	return &c
}
