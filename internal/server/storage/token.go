package storage

import (
	"context"

	"github.com/iudanet/leadsauth/internal/models"
)

// TokenStorage defines the refresh token ledger.
// Records are append-only apart from the revoked/replaced_by transition.
type TokenStorage interface {
	// CreateRefreshToken stores a new ledger record
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error

	// GetRefreshToken retrieves a record by ID
	// Returns ErrTokenNotFound if record doesn't exist
	GetRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error)

	// GetRefreshTokenByHash retrieves a record by token hash, revoked or not
	// Returns ErrTokenNotFound if record doesn't exist
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// GetActiveUserTokens retrieves all non-revoked records for a user.
	// Expiry is not filtered here
	GetActiveUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	// GetUserTokens retrieves all records for a user
	// Returns empty slice if no tokens found
	GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	// RevokeRefreshToken marks a record revoked
	// Returns ErrTokenNotFound if record doesn't exist
	RevokeRefreshToken(ctx context.Context, id string) error

	// RotateRefreshToken inserts next and, in the same transaction, revokes
	// oldID linking it to next. Returns ErrTokenAlreadyRotated if oldID was
	// already revoked or replaced, in which case next is not stored
	RotateRefreshToken(ctx context.Context, oldID string, next *models.RefreshToken) error

	// RevokeUserTokens revokes all live records for a user
	// Returns number of revoked records
	RevokeUserTokens(ctx context.Context, userID string) (int, error)

	// RevokeTokenChain revokes fromID and every record reachable from it
	// through replaced_by. Returns number of newly revoked records
	RevokeTokenChain(ctx context.Context, fromID string) (int, error)
}
