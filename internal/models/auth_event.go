package models

import "time"

// AuthEventType классифицирует события аутентификации
type AuthEventType string

const (
	EventRegister     AuthEventType = "register"
	EventLogin        AuthEventType = "login"
	EventAdminLogin   AuthEventType = "admin_login"
	EventLoginFailed  AuthEventType = "login_failed"
	EventRefresh      AuthEventType = "refresh"
	EventRefreshReuse AuthEventType = "refresh_reuse"
	EventLogout       AuthEventType = "logout"
)

// AuthEvent представляет запись журнала аутентификации
type AuthEvent struct {
	CreatedAt time.Time     `json:"created_at"`
	ID        string        `json:"id"`
	UserID    string        `json:"user_id,omitempty"` // пустой, если пользователь не определен
	Type      AuthEventType `json:"type"`
	IP        string        `json:"ip,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
}
