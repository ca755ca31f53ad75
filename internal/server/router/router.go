// Package router собирает HTTP API сервера на chi
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/leadsauth/internal/server/handlers"
	"github.com/iudanet/leadsauth/internal/server/metrics"
	"github.com/iudanet/leadsauth/internal/server/middleware"
	"github.com/iudanet/leadsauth/internal/server/storage"
	"github.com/iudanet/leadsauth/internal/server/telemetry"
	"github.com/iudanet/leadsauth/pkg/api"
)

// AuthService полный набор операций, нужных маршрутам аутентификации
type AuthService interface {
	handlers.AuthService
	middleware.Authenticator
}

// Options зависимости и настройки роутера
type Options struct {
	Logger  *slog.Logger
	Auth    AuthService
	Events  storage.EventStorage
	Metrics *metrics.Metrics
	// Gatherer источник для /metrics; nil отключает эндпоинт
	Gatherer prometheus.Gatherer
	Health   map[string]handlers.Pinger
	Version  string
	Cookies  handlers.CookieConfig

	AllowedOrigins     []string
	RateLimitPerMinute int
	Tracing            bool
}

// New строит http.Handler со всеми маршрутами
func New(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if opts.Tracing {
		r.Use(telemetry.Middleware("leadsauth"))
	}
	r.Use(middleware.LoggingWithSkip(opts.Logger, []string{api.PathHealth, "/metrics"}))
	r.Use(middleware.RecoveryMiddleware(opts.Logger))
	r.Use(opts.Metrics.Middleware)

	if len(opts.AllowedOrigins) > 0 {
		// Cookies требуют явного списка источников, "*" с credentials недопустим
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           int((10 * time.Minute).Seconds()),
		}))
	}

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	health := handlers.NewHealthHandler(opts.Logger, opts.Version, opts.Health)
	authHandler := handlers.NewAuthHandler(opts.Logger, opts.Auth, opts.Cookies)
	requireSession := middleware.AuthMiddleware(opts.Logger, opts.Auth)

	r.Route(api.PathPrefix, func(r chi.Router) {
		r.Get("/health", health.Health)

		r.Group(func(r chi.Router) {
			if opts.RateLimitPerMinute > 0 {
				r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
			}

			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/admin/login", authHandler.AdminLogin)
			r.Post("/auth/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Post("/auth/logout", authHandler.Logout)
				r.Post("/auth/me", authHandler.Me)
			})
		})

		if opts.Events != nil {
			events := handlers.NewEventsHandler(opts.Logger, opts.Events)
			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Use(middleware.RequireAdmin(opts.Logger))
				r.Get("/admin/users/{id}/auth-events", events.ListUserEvents)
			})
		}
	})

	return r
}
