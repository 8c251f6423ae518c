// Package model defines data structures for the team inbox.
package model

import (
	"time"
)

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationOpen    ConversationStatus = "open"
	ConversationPending ConversationStatus = "pending"
	ConversationClosed  ConversationStatus = "closed"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationOpen, ConversationPending, ConversationClosed:
		return true
	}
	return false
}

// Conversation represents one ongoing thread with a single external contact.
// Exactly one conversation exists per WhatsApp contact identifier; it is
// created lazily on the first inbound message.
type Conversation struct {
	ID              string             `json:"id"`
	WhatsAppID      string             `json:"whatsapp_id"`
	ContactName     string             `json:"contact_name"`
	ContactPhone    string             `json:"contact_phone"`
	DepartmentID    string             `json:"department_id"`
	AssignedTo      *string            `json:"assigned_to,omitempty"`
	Status          ConversationStatus `json:"status"`
	LastMessageAt   time.Time          `json:"last_message_at"`
	FirstResponseAt *time.Time         `json:"first_response_at,omitempty"`
	ResponseCount   int                `json:"response_count"`
	FollowUpAt      *time.Time         `json:"follow_up_at,omitempty"`
	AIHandled       bool               `json:"is_ai_handled"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	DeletedAt       *time.Time         `json:"deleted_at,omitempty"`
}

// Department is a routing unit owning conversations and users.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ConversationDefaults carries the fields applied when a conversation is
// created lazily for an unseen contact.
type ConversationDefaults struct {
	ContactName  string
	ContactPhone string
	DepartmentID string
}

// AssignRequest is the request to assign a conversation to an agent.
type AssignRequest struct {
	UserID string `json:"user_id"`
}

// UpdateStatusRequest is the request to change a conversation's status.
type UpdateStatusRequest struct {
	Status ConversationStatus `json:"status"`
}

// FollowUpRequest is the request to schedule a follow-up.
type FollowUpRequest struct {
	FollowUpAt time.Time `json:"follow_up_at"`
}

// ConversationFilter narrows conversation listings.
type ConversationFilter struct {
	Status       ConversationStatus
	DepartmentID string
	AssignedTo   string
	Search       string
	Limit        int
	Offset       int
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
