package handlers

import (
	"net/http"
	"time"

	"github.com/iudanet/leadsauth/internal/server/jwt"
	"github.com/iudanet/leadsauth/pkg/api"
)

// CookieConfig атрибуты cookies с токенами
type CookieConfig struct {
	Domain string
	Secure bool
}

func (c CookieConfig) cookie(name, value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Expires:  expires,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// setTokenCookies выставляет cookies сессии и refresh, время жизни равно времени жизни токенов
func (c CookieConfig) setTokenCookies(w http.ResponseWriter, pair *jwt.TokenPair, now time.Time) {
	http.SetCookie(w, c.cookie(api.SessionCookie, pair.SessionToken, maxAge(pair.SessionExpiresAt, now), pair.SessionExpiresAt))
	http.SetCookie(w, c.cookie(api.RefreshCookie, pair.RefreshToken, maxAge(pair.RefreshExpiresAt, now), pair.RefreshExpiresAt))
}

// clearTokenCookies удаляет обе cookies
func (c CookieConfig) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(api.SessionCookie, "", -1, time.Unix(0, 0)))
	http.SetCookie(w, c.cookie(api.RefreshCookie, "", -1, time.Unix(0, 0)))
}

func maxAge(expiresAt, now time.Time) int {
	secs := int(expiresAt.Sub(now) / time.Second)
	if secs < 1 {
		return -1
	}
	return secs
}
