// Package api содержит DTO и маршруты HTTP API аутентификации
package api

import "time"

// Маршруты API
const (
	PathPrefix     = "/api"
	PathRegister   = "/api/auth/register"
	PathLogin      = "/api/auth/login"
	PathAdminLogin = "/api/auth/admin/login"
	PathRefresh    = "/api/auth/refresh"
	PathLogout     = "/api/auth/logout"
	PathMe         = "/api/auth/me"
	PathHealth     = "/api/health"
)

// Имена cookies с токенами
const (
	SessionCookie = "accessToken"
	RefreshCookie = "refreshToken"
)

// CredentialsRequest тело запросов регистрации и входа
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInfo публичное представление пользователя
type UserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// AuthResponse ответ на регистрацию, вход, refresh и me.
// Токены передаются только в cookies, никогда в теле.
type AuthResponse struct {
	User UserInfo `json:"user"`
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// PathUserEvents журнал аутентификации пользователя (только администраторы)
const PathUserEvents = "/api/admin/users/{id}/auth-events"

// AuthEventsResponse ответ со списком событий аутентификации, новые первыми
type AuthEventsResponse struct {
	Events []AuthEventInfo `json:"events"`
}

// AuthEventInfo событие аутентификации
type AuthEventInfo struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
}
