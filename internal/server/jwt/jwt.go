package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iudanet/leadsauth/internal/crypto"
)

const (
	// KindSession помечает короткоживущий токен сессии
	KindSession = "session"
	// KindRefresh помечает долгоживущий refresh токен
	KindRefresh = "refresh"

	// DefaultSessionTTL время жизни токена сессии по умолчанию
	DefaultSessionTTL = 15 * time.Minute
	// DefaultRefreshTTL время жизни refresh токена по умолчанию
	DefaultRefreshTTL = 7 * 24 * time.Hour
	// DefaultIssuer значение claim iss по умолчанию
	DefaultIssuer = "leadsauth"
)

var (
	// ErrWrongKind возвращается, если токен другого вида (refresh вместо session и наоборот)
	ErrWrongKind = errors.New("unexpected token kind")
	// ErrEmptySecret возвращается при пустом ключе подписи
	ErrEmptySecret = errors.New("signing secret cannot be empty")
)

// SessionClaims представляет claims токена сессии
type SessionClaims struct {
	Kind    string `json:"kind"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// RefreshClaims представляет claims refresh токена.
// Содержит только subject и флаг администратора, ID (jti) случайный.
type RefreshClaims struct {
	Kind    string `json:"kind"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// TokenPair пара токенов, выданных за один вызов Issue
type TokenPair struct {
	SessionExpiresAt time.Time
	RefreshExpiresAt time.Time
	SessionToken     string
	RefreshToken     string
}

// Config содержит конфигурацию для JWT
type Config struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

// Issuer выпускает и проверяет токены сессии и refresh токены (HS256)
type Issuer struct {
	now func() time.Time
	cfg Config
}

// Option настраивает Issuer
type Option func(*Issuer)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer создает новый Issuer. Нулевые TTL и issuer заменяются значениями по умолчанию.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}

	i := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// SessionTTL returns the configured session token lifetime.
func (i *Issuer) SessionTTL() time.Duration { return i.cfg.SessionTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

// Issue создает новую пару токенов для пользователя
func (i *Issuer) Issue(subject, email string, isAdmin bool) (*TokenPair, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject cannot be empty")
	}

	now := i.now()
	sessionExp := now.Add(i.cfg.SessionTTL)
	refreshExp := now.Add(i.cfg.RefreshTTL)

	session := SessionClaims{
		Kind:    KindSession,
		Email:   email,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(sessionExp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	sessionToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, session).SignedString(i.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	refresh := RefreshClaims{
		Kind:    KindRefresh,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(i.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		SessionToken:     sessionToken,
		SessionExpiresAt: sessionExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ParseSession валидирует и парсит токен сессии
func (i *Issuer) ParseSession(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := i.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Kind != KindSession {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ParseRefresh валидирует и парсит refresh токен
func (i *Issuer) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Kind != KindRefresh {
		return nil, ErrWrongKind
	}
	return claims, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// HashRefreshToken возвращает хеш refresh токена для хранения в журнале
func HashRefreshToken(raw string) string {
	return crypto.HashToken(raw)
}

// MatchRefreshToken сравнивает сырой refresh токен с хешем из журнала
func MatchRefreshToken(raw, hash string) bool {
	return crypto.TokenMatches(raw, hash)
}
