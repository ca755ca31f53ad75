package models

import "time"

// RefreshToken представляет запись в журнале refresh токенов.
// Сырой токен никогда не хранится, только его хеш.
type RefreshToken struct {
	ExpiresAt  time.Time `json:"expires_at"`            // время истечения
	CreatedAt  time.Time `json:"created_at"`            // время создания
	UpdatedAt  time.Time `json:"updated_at"`            // время последнего изменения
	ReplacedBy *string   `json:"replaced_by,omitempty"` // ID записи, заменившей эту при ротации
	ID         string    `json:"id"`                    // UUID записи
	UserID     string    `json:"user_id"`               // ID владельца
	TokenHash  string    `json:"token_hash"`            // SHA256 хеш токена (hex)
	IP         string    `json:"ip,omitempty"`          // IP клиента при выдаче
	UserAgent  string    `json:"user_agent,omitempty"`  // User-Agent клиента при выдаче
	Revoked    bool      `json:"revoked"`               // отозван (только false -> true)
}

// IsExpired reports whether the record's own expiry has passed at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRotated reports whether the record was superseded by a rotation.
func (t *RefreshToken) IsRotated() bool {
	return t.ReplacedBy != nil
}
