package storage

import (
	"context"
	"time"

	"github.com/iudanet/leadsauth/internal/models"
)

// UserStorage defines interface for identity persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email is taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by exact email match (soft-deleted included)
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID (soft-deleted included)
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// UpdateLastLogin records the last login timestamp and client IP
	// Returns ErrUserNotFound if user doesn't exist
	UpdateLastLogin(ctx context.Context, userID string, at time.Time, ip string) error

	// SetAdmin changes the administrative flag
	// Returns ErrUserNotFound if user doesn't exist
	SetAdmin(ctx context.Context, userID string, isAdmin bool) error

	// SoftDeleteUser sets the soft-deletion marker
	// Returns ErrUserNotFound if user doesn't exist
	SoftDeleteUser(ctx context.Context, userID string, at time.Time) error

	// DeleteUser removes user and, by cascade, all of its ledger records and events
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID string) error
}
