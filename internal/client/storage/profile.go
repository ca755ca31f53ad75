package storage

import "context"

// ProfileStorage хранит сведения о последней подтвержденной сессии.
// Профиль только для отображения: состояние авторизации из него не выводится.
type ProfileStorage interface {
	SaveProfile(ctx context.Context, p *Profile) error

	// GetProfile returns ErrProfileNotFound if nothing was saved
	GetProfile(ctx context.Context) (*Profile, error)

	DeleteProfile(ctx context.Context) error
}

// Profile последний пользователь, подтвержденный сервером
type Profile struct {
	Server      string `json:"server"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	ConfirmedAt int64  `json:"confirmed_at"`
	IsAdmin     bool   `json:"is_admin"`
}
