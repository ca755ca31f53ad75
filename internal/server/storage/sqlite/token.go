package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/storage"
)

const tokenColumns = `id, user_id, token_hash, expires_at, revoked, replaced_by, ip, user_agent, created_at, updated_at`

// CreateRefreshToken stores a new ledger record
func (s *Storage) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := insertToken(ctx, s.db, token); err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a record by ID
func (s *Storage) GetRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE id = ?`

	token, err := scanToken(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return token, nil
}

// GetRefreshTokenByHash retrieves a record by token hash
func (s *Storage) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = ?`

	token, err := scanToken(s.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token by hash: %w", err)
	}

	return token, nil
}

// GetActiveUserTokens retrieves all non-revoked records for a user
func (s *Storage) GetActiveUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE user_id = ? AND revoked = 0
		ORDER BY created_at DESC
	`

	return s.queryTokens(ctx, query, userID)
}

// GetUserTokens retrieves all records for a user
func (s *Storage) GetUserTokens(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	return s.queryTokens(ctx, query, userID)
}

// RevokeRefreshToken marks a record revoked. Revoking a revoked record is a no-op.
func (s *Storage) RevokeRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenNotFound
	}

	return nil
}

// RotateRefreshToken inserts next and revokes oldID in one transaction
func (s *Storage) RotateRefreshToken(ctx context.Context, oldID string, next *models.RefreshToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertToken(ctx, tx, next); err != nil {
		return fmt.Errorf("failed to insert replacement token: %w", err)
	}

	// Условное обновление: выигрывает только первая ротация
	query := `
		UPDATE refresh_tokens
		SET revoked = 1, replaced_by = ?, updated_at = ?
		WHERE id = ? AND revoked = 0 AND replaced_by IS NULL
	`

	result, err := tx.ExecContext(ctx, query, next.ID, time.Now().UTC(), oldID)
	if err != nil {
		return fmt.Errorf("failed to link replacement token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrTokenAlreadyRotated
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}

	return nil
}

// RevokeUserTokens revokes all live records for a user
func (s *Storage) RevokeUserTokens(ctx context.Context, userID string) (int, error) {
	query := `UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE user_id = ? AND revoked = 0`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// RevokeTokenChain revokes fromID and all of its successors
func (s *Storage) RevokeTokenChain(ctx context.Context, fromID string) (int, error) {
	query := `
		WITH RECURSIVE chain(id) AS (
			SELECT id FROM refresh_tokens WHERE id = ?
			UNION
			SELECT rt.replaced_by FROM refresh_tokens rt
			JOIN chain c ON rt.id = c.id
			WHERE rt.replaced_by IS NOT NULL
		)
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = ?
		WHERE id IN (SELECT id FROM chain) AND revoked = 0
	`

	result, err := s.db.ExecContext(ctx, query, fromID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke token chain: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

func (s *Storage) queryTokens(ctx context.Context, query string, args ...any) ([]*models.RefreshToken, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	tokens := make([]*models.RefreshToken, 0)

	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return tokens, nil
}

// execer общий интерфейс для *sql.DB и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, replaced_by,
			ip, user_agent, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, NULL, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt.UTC(),
		token.IP,
		token.UserAgent,
		token.CreatedAt.UTC(),
		token.UpdatedAt.UTC(),
	)
	return err
}

func scanToken(row rowScanner) (*models.RefreshToken, error) {
	token := &models.RefreshToken{}
	var replacedBy sql.NullString

	if err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.Revoked,
		&replacedBy,
		&token.IP,
		&token.UserAgent,
		&token.CreatedAt,
		&token.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if replacedBy.Valid {
		id := replacedBy.String
		token.ReplacedBy = &id
	}

	return token, nil
}
