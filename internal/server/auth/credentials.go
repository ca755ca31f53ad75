package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/leadsauth/internal/crypto"
	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/storage"
)

// Verifier проверяет email и пароль по сохраненному хешу
type Verifier struct {
	users     storage.UserStorage
	hasher    *crypto.PasswordHasher
	dummyHash string
}

// NewVerifier создает Verifier. Хеш-заглушка вычисляется один раз, чтобы
// неизвестный email проверялся столько же, сколько существующий.
func NewVerifier(users storage.UserStorage, hasher *crypto.PasswordHasher) (*Verifier, error) {
	dummy, err := hasher.Hash("leadsauth-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("failed to compute dummy hash: %w", err)
	}
	return &Verifier{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Verify возвращает пользователя, если пара email/пароль верна
func (v *Verifier) Verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := v.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			_, _ = v.hasher.Verify(password, v.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := v.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	// Мягко удаленные учетные записи не могут войти заново
	if user.IsDeleted() {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// VerifyAdmin проверяет учетные данные, затем административный флаг
func (v *Verifier) VerifyAdmin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := v.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, ErrAccessDenied
	}
	return user, nil
}
