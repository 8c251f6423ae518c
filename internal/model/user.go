package model

import "time"

// Role represents a user's position in the inbox hierarchy.
type Role string

const (
	// RoleAdmin has unrestricted access.
	RoleAdmin Role = "admin"
	// RoleOperationManager oversees all departments.
	RoleOperationManager Role = "operation_manager"
	// RoleManager manages a single department.
	RoleManager Role = "manager"
	// RoleAssistantManager manages conversations within a department.
	RoleAssistantManager Role = "assistant_manager"
	// RoleAgent handles only conversations assigned to them.
	RoleAgent Role = "cx_agent"
)

// User is a human agent. Messages keep a weak reference to their sender, so
// user deletion never removes message history.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	DepartmentID string     `json:"department_id"`
	Avatar       *string    `json:"avatar,omitempty"`
	Active       bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsOperationManager reports whether the user oversees all departments.
func (u *User) IsOperationManager() bool {
	return u.Role == RoleOperationManager
}

// CanManageConversations reports whether the user may assign conversations
// and see every thread in their department.
func (u *User) CanManageConversations() bool {
	switch u.Role {
	case RoleAdmin, RoleOperationManager, RoleManager, RoleAssistantManager:
		return true
	}
	return false
}
