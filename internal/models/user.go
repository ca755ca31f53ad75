package models

import "time"

// User представляет учетную запись (identity) в системе
type User struct {
	RegisteredAt time.Time  `json:"registered_at"`           // время регистрации
	UpdatedAt    time.Time  `json:"updated_at"`              // время последнего изменения
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"` // время последнего входа
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`    // метка мягкого удаления
	ID           string     `json:"id"`                      // UUID пользователя
	Email        string     `json:"email"`                   // уникальный email (точное совпадение)
	PasswordHash string     `json:"-"`                       // argon2id хеш пароля в PHC формате
	RegisteredIP string     `json:"registered_ip,omitempty"` // IP при регистрации
	LastLoginIP  string     `json:"last_login_ip,omitempty"` // IP последнего входа
	IsAdmin      bool       `json:"is_admin"`                // административный флаг
}

// IsDeleted reports whether the identity carries a soft-deletion marker.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}
