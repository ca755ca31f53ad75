// Package revocation keeps a per-user "sessions issued before T are dead"
// marker so logout cuts short already-issued session tokens.
package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "leadsauth:revoked:"

// RedisDenylist хранит метку отзыва сессий пользователя в Redis.
// Метка живет ttl (не меньше времени жизни токена сессии).
type RedisDenylist struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDenylist создает denylist поверх клиента Redis
func NewRedisDenylist(client *redis.Client, ttl time.Duration) *RedisDenylist {
	return &RedisDenylist{client: client, ttl: ttl}
}

func userKey(userID string) string {
	return keyPrefix + userID
}

// RevokeUserSessions помечает все токены сессии пользователя, выданные до at, как отозванные
func (d *RedisDenylist) RevokeUserSessions(ctx context.Context, userID string, at time.Time) error {
	value := strconv.FormatInt(at.Unix(), 10)
	if err := d.client.Set(ctx, userKey(userID), value, d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation marker: %w", err)
	}
	return nil
}

// IsRevoked сообщает, выдан ли токен с issuedAt раньше метки отзыва.
// Точность секундная, как у claim iat.
func (d *RedisDenylist) IsRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	value, err := d.client.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read revocation marker: %w", err)
	}

	revokedAt, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid revocation marker: %w", err)
	}

	return issuedAt.Unix() < revokedAt, nil
}

// Ping проверяет соединение с Redis
func (d *RedisDenylist) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
