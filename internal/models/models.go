package models

// APIResponse is the envelope every gateway endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SessionUser is the identity decoded from the session token.
type SessionUser struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	RoleLevel string `json:"roleLevel,omitempty"`
}

// NotificationsView is what the notification panel renders.
type NotificationsView struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	Loading       bool           `json:"loading"`
	Error         string         `json:"error,omitempty"`
}
