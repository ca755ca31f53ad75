package storage

import (
	"context"

	"github.com/iudanet/leadsauth/internal/models"
)

// EventStorage defines interface for the authentication event log
type EventStorage interface {
	// SaveEvent appends an event to the log
	SaveEvent(ctx context.Context, event *models.AuthEvent) error

	// ListUserEvents returns the latest events of a user, newest first
	ListUserEvents(ctx context.Context, userID string, limit int) ([]*models.AuthEvent, error)
}
