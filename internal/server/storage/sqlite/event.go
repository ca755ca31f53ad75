package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iudanet/leadsauth/internal/models"
)

// SaveEvent appends an authentication event
func (s *Storage) SaveEvent(ctx context.Context, event *models.AuthEvent) error {
	query := `
		INSERT INTO auth_events (id, user_id, event_type, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var userID sql.NullString
	if event.UserID != "" {
		userID = sql.NullString{String: event.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		userID,
		string(event.Type),
		event.IP,
		event.UserAgent,
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save auth event: %w", err)
	}

	return nil
}

// ListUserEvents returns the latest events of a user, newest first
func (s *Storage) ListUserEvents(ctx context.Context, userID string, limit int) ([]*models.AuthEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, event_type, ip, user_agent, created_at
		FROM auth_events
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	events := make([]*models.AuthEvent, 0)

	for rows.Next() {
		event := &models.AuthEvent{}
		var uid sql.NullString
		var eventType string

		if err := rows.Scan(&event.ID, &uid, &eventType, &event.IP, &event.UserAgent, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}

		event.UserID = uid.String
		event.Type = models.AuthEventType(eventType)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}
