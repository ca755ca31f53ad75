package storage

import "context"

// Storage aggregates all server-side persistence
type Storage interface {
	UserStorage
	TokenStorage
	EventStorage

	// Ping checks the underlying connection
	Ping(ctx context.Context) error
	Close() error
}
