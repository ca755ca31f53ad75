package storage

import (
	"context"
	"time"
)

// CookieStorage хранит cookies сессии между запусками клиента.
// Значения токенов хранятся как есть: файл базы создается с правами 0600.
type CookieStorage interface {
	// SaveCookie создает или заменяет cookie с тем же ключом
	SaveCookie(ctx context.Context, c *CookieRecord) error

	// DeleteCookie удаляет cookie; отсутствие записи ошибкой не считается
	DeleteCookie(ctx context.Context, key string) error

	// ListCookies возвращает все сохраненные cookies
	ListCookies(ctx context.Context) ([]*CookieRecord, error)

	// ClearCookies удаляет все cookies
	ClearCookies(ctx context.Context) error
}

// CookieRecord сохраненная cookie вместе с URL, от которого она получена
type CookieRecord struct {
	Expires  time.Time `json:"expires"`
	Origin   string    `json:"origin"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	SameSite int       `json:"same_site,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Key ключ записи: cookie с тем же доменом, путем и именем заменяет предыдущую
func (c *CookieRecord) Key() string {
	return c.Origin + "|" + c.Domain + "|" + c.Path + "|" + c.Name
}

// Expired проверяет срок жизни. Нулевой Expires означает сессионную cookie.
func (c *CookieRecord) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}
