package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/leadsauth/internal/server/auth"
	"github.com/iudanet/leadsauth/internal/server/storage"
	"github.com/iudanet/leadsauth/pkg/api"
)

// maxBodySize ограничение тела запроса с учетными данными
const maxBodySize = 1 << 16

// AuthService операции аутентификации, используемые обработчиками
type AuthService interface {
	Register(ctx context.Context, email, password string, info auth.ClientInfo) (*auth.Session, error)
	Login(ctx context.Context, email, password string, info auth.ClientInfo) (*auth.Session, error)
	AdminLogin(ctx context.Context, email, password string, info auth.ClientInfo) (*auth.Session, error)
	Refresh(ctx context.Context, rawRefresh string, info auth.ClientInfo) (*auth.Session, error)
	Logout(ctx context.Context, userID string, info auth.ClientInfo) error
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service AuthService
	cookies CookieConfig
	now     func() time.Time
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, service AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: service,
		cookies: cookies,
		now:     time.Now,
	}
}

// Register обрабатывает POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := h.service.Register(ctx, req.Email, req.Password, clientInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			h.sendError(w, strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error()+": "), http.StatusBadRequest)
		case errors.Is(err, storage.ErrUserAlreadyExists):
			h.logger.WarnContext(ctx, "registration rejected: email taken")
			h.sendError(w, "email already registered", http.StatusConflict)
		default:
			h.logger.ErrorContext(ctx, "failed to register user", slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.startSession(w, session, http.StatusCreated)
}

// Login обрабатывает POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.Login)
}

// AdminLogin обрабатывает POST /api/auth/admin/login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.AdminLogin)
}

type loginFunc func(ctx context.Context, email, password string, info auth.ClientInfo) (*auth.Session, error)

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, fn loginFunc) {
	ctx := r.Context()

	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	session, err := fn(ctx, req.Email, req.Password, clientInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.sendError(w, auth.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		case errors.Is(err, auth.ErrAccessDenied):
			h.sendError(w, auth.ErrAccessDenied.Error(), http.StatusUnauthorized)
		default:
			h.logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.startSession(w, session, http.StatusOK)
}

// Refresh обрабатывает POST /api/auth/refresh
// Refresh токен берется только из cookie. Причина отказа клиенту не сообщается.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(api.RefreshCookie)
	if err != nil || cookie.Value == "" {
		h.sendError(w, "", http.StatusUnauthorized)
		return
	}

	session, err := h.service.Refresh(ctx, cookie.Value, clientInfo(r))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			h.logger.ErrorContext(ctx, "refresh failed", slog.Any("error", err))
		}
		// Cookies не очищаются: победитель параллельной ротации мог уже выставить новые
		h.sendError(w, "", http.StatusUnauthorized)
		return
	}

	h.startSession(w, session, http.StatusOK)
}

// Logout обрабатывает POST /api/auth/logout
// Отзывает все refresh токены пользователя на всех устройствах
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := UserFromContext(ctx)
	if !ok {
		h.sendError(w, "", http.StatusUnauthorized)
		return
	}

	if err := h.service.Logout(ctx, user.ID, clientInfo(r)); err != nil {
		h.logger.ErrorContext(ctx, "failed to logout", slog.String("user_id", user.ID), slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.cookies.clearTokenCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает POST /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.sendError(w, "", http.StatusUnauthorized)
		return
	}

	h.sendJSON(w, api.AuthResponse{User: toUserInfo(user)}, http.StatusOK)
}

func (h *AuthHandler) decodeCredentials(w http.ResponseWriter, r *http.Request) (*api.CredentialsRequest, bool) {
	var req api.CredentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode credentials request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func (h *AuthHandler) startSession(w http.ResponseWriter, session *auth.Session, statusCode int) {
	h.cookies.setTokenCookies(w, session.Tokens, h.now())
	h.sendJSON(w, api.AuthResponse{User: toUserInfo(session.User)}, statusCode)
}

// sendJSON отправляет JSON ответ
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	WriteJSON(w, h.logger, data, statusCode)
}

// sendError отправляет JSON ответ с ошибкой
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	WriteError(w, h.logger, message, statusCode)
}
