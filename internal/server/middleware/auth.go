package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/auth"
	"github.com/iudanet/leadsauth/internal/server/handlers"
	"github.com/iudanet/leadsauth/pkg/api"
)

// Authenticator проверяет токен сессии и возвращает актуального пользователя
type Authenticator interface {
	Authenticate(ctx context.Context, rawSession string) (*models.User, error)
}

// AuthMiddleware создает middleware для проверки токена сессии.
// Токен берется из cookie accessToken, иначе из заголовка Authorization: Bearer.
// Пользователь перечитывается из хранилища, поэтому флаг администратора всегда актуален.
func AuthMiddleware(logger *slog.Logger, authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := extractSessionToken(r)
			if token == "" {
				handlers.WriteError(w, logger, "", http.StatusUnauthorized)
				return
			}

			user, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					logger.DebugContext(ctx, "Session rejected", slog.Any("error", err))
					handlers.WriteError(w, logger, "", http.StatusUnauthorized)
					return
				}
				logger.ErrorContext(ctx, "Failed to authenticate session", slog.Any("error", err))
				handlers.WriteError(w, logger, "internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithUser(ctx, user)))
		})
	}
}

// RequireAdmin пропускает только администраторов. Ставится после AuthMiddleware.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := handlers.UserFromContext(r.Context())
			if !ok {
				handlers.WriteError(w, logger, "", http.StatusUnauthorized)
				return
			}
			if !user.IsAdmin {
				handlers.WriteError(w, logger, auth.ErrAccessDenied.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractSessionToken(r *http.Request) string {
	if c, err := r.Cookie(api.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
