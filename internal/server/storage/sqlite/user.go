package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/storage"
)

const userColumns = `id, email, password_hash, is_admin, registered_ip, last_login_ip,
	registered_at, updated_at, last_login_at, deleted_at`

// rowScanner общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, is_admin, registered_ip, last_login_ip,
			registered_at, updated_at, last_login_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.RegisteredIP,
		user.LastLoginIP,
		user.RegisteredAt.UTC(),
		user.UpdatedAt.UTC(),
		nullTime(user.LastLoginAt),
		nullTime(user.DeletedAt),
	)

	if err != nil {
		// Проверяем на duplicate email
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by exact email match
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdateLastLogin updates the last login timestamp and IP
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string, at time.Time, ip string) error {
	query := `UPDATE users SET last_login_at = ?, last_login_ip = ?, updated_at = ? WHERE id = ?`

	return s.execUserUpdate(ctx, "update last login", query, at.UTC(), ip, time.Now().UTC(), userID)
}

// SetAdmin changes the administrative flag
func (s *Storage) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	query := `UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`

	return s.execUserUpdate(ctx, "set admin flag", query, isAdmin, time.Now().UTC(), userID)
}

// SoftDeleteUser sets the soft-deletion marker. Repeated calls keep the first marker.
func (s *Storage) SoftDeleteUser(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET deleted_at = COALESCE(deleted_at, ?), updated_at = ? WHERE id = ?`

	return s.execUserUpdate(ctx, "soft delete user", query, at.UTC(), time.Now().UTC(), userID)
}

// DeleteUser deletes user by ID
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	query := `DELETE FROM users WHERE id = ?`

	return s.execUserUpdate(ctx, "delete user", query, userID)
}

func (s *Storage) execUserUpdate(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var lastLogin, deletedAt sql.NullTime

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.RegisteredIP,
		&user.LastLoginIP,
		&user.RegisteredAt,
		&user.UpdatedAt,
		&lastLogin,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	if deletedAt.Valid {
		user.DeletedAt = &deletedAt.Time
	}

	return user, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
