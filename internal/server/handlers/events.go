package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/leadsauth/internal/server/storage"
	"github.com/iudanet/leadsauth/pkg/api"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// EventsHandler отдает журнал аутентификации администраторам
type EventsHandler struct {
	logger *slog.Logger
	events storage.EventStorage
}

// NewEventsHandler создает handler журнала событий
func NewEventsHandler(logger *slog.Logger, events storage.EventStorage) *EventsHandler {
	return &EventsHandler{logger: logger, events: events}
}

// ListUserEvents обрабатывает GET /api/admin/users/{id}/auth-events?limit=N
func (h *EventsHandler) ListUserEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := chi.URLParam(r, "id")
	if userID == "" {
		WriteError(w, h.logger, "user id is required", http.StatusBadRequest)
		return
	}

	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, h.logger, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEventsLimit)
	}

	events, err := h.events.ListUserEvents(ctx, userID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list auth events", slog.String("user_id", userID), slog.Any("error", err))
		WriteError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.AuthEventsResponse{Events: make([]api.AuthEventInfo, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, api.AuthEventInfo{
			CreatedAt: e.CreatedAt,
			ID:        e.ID,
			Type:      string(e.Type),
			IP:        e.IP,
			UserAgent: e.UserAgent,
		})
	}

	WriteJSON(w, h.logger, resp, http.StatusOK)
}
