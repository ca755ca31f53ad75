package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/iudanet/leadsauth/pkg/api"
)

// healthTimeout ограничение на проверку одной зависимости
const healthTimeout = 2 * time.Second

// Pinger зависимость, доступность которой проверяет health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	checks  map[string]Pinger
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		checks:  checks,
		version: version,
	}
}

// Health обрабатывает GET /api/health
// 503, если недоступна хотя бы одна зависимость
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Checks:  make(map[string]string, len(names)),
	}
	status := http.StatusOK

	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		err := h.checks[name].Ping(checkCtx)
		cancel()

		if err != nil {
			h.logger.WarnContext(ctx, "health check failed", slog.String("check", name), slog.Any("error", err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	WriteJSON(w, h.logger, resp, status)
}
