package models

import "time"

// Priority is the urgency of a notification as shown in the panel.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for sorting; lower ranks sort first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Role is a back-office audience a notification can target.
type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleSupervisor Role = "Supervisor"
	RoleAnalyst    Role = "Analyst"
	RoleAll        Role = "All"
)

// Source tells whether a notification came from the backend or was created in-process.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Notification is the canonical, backend-shape-independent notification.
type Notification struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Message          string         `json:"message"`
	CreatedAt        time.Time      `json:"createdAt"`
	Read             bool           `json:"read"`
	Priority         Priority       `json:"priority"`
	Type             string         `json:"type"`
	TargetRoles      []Role         `json:"targetRoles"`
	Source           Source         `json:"source"`
	RelatedRequestID string         `json:"relatedRequestId,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Raw              any            `json:"raw,omitempty"`
}

// Targets reports whether the notification is addressed to role.
// A notification targeting RoleAll is visible to everyone.
func (n Notification) Targets(role Role) bool {
	for _, r := range n.TargetRoles {
		if r == RoleAll || r == role {
			return true
		}
	}
	return false
}

// NotificationInput describes a notification synthesized by the running application.
type NotificationInput struct {
	ID               string         `json:"id,omitempty"`
	Title            string         `json:"title" binding:"required"`
	Message          string         `json:"message,omitempty"`
	Priority         Priority       `json:"priority,omitempty"`
	Type             string         `json:"type,omitempty"`
	TargetRoles      []Role         `json:"targetRoles,omitempty"`
	RelatedRequestID string         `json:"relatedRequestId,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Read             bool           `json:"read,omitempty"`
	CreatedAt        *time.Time     `json:"createdAt,omitempty"`
}
