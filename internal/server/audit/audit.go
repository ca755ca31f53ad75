// Package audit records authentication events to the event log and,
// optionally, to a message bus.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/storage"
)

// Publisher отправляет событие во внешнюю шину
type Publisher interface {
	Publish(ctx context.Context, event *models.AuthEvent) error
}

// Recorder пишет события аутентификации. Ошибки записи не прерывают
// основной поток, они только логируются.
type Recorder struct {
	logger    *slog.Logger
	store     storage.EventStorage
	publisher Publisher
	now       func() time.Time
}

// NewRecorder создает Recorder; publisher может быть nil
func NewRecorder(logger *slog.Logger, store storage.EventStorage, publisher Publisher) *Recorder {
	return &Recorder{
		logger:    logger,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record сохраняет событие. Nil Recorder ничего не делает.
func (r *Recorder) Record(ctx context.Context, typ models.AuthEventType, userID, ip, userAgent string) {
	if r == nil {
		return
	}

	event := &models.AuthEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: r.now(),
	}

	if r.store != nil {
		if err := r.store.SaveEvent(ctx, event); err != nil {
			r.logger.WarnContext(ctx, "Failed to save auth event",
				slog.String("type", string(typ)),
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish auth event",
				slog.String("type", string(typ)),
				slog.Any("error", err),
			)
		}
	}
}
