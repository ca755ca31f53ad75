package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/leadsauth/internal/client/storage"
)

// SaveCookie stores a cookie under its key
func (s *Storage) SaveCookie(ctx context.Context, c *storage.CookieRecord) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cookie: %w", err)
	}

	return s.update(bucketCookies, func(b *bbolt.Bucket) error {
		if err := b.Put([]byte(c.Key()), data); err != nil {
			return fmt.Errorf("failed to save cookie: %w", err)
		}
		return nil
	})
}

// DeleteCookie removes a cookie by key
func (s *Storage) DeleteCookie(ctx context.Context, key string) error {
	return s.update(bucketCookies, func(b *bbolt.Bucket) error {
		if err := b.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete cookie: %w", err)
		}
		return nil
	})
}

// ListCookies returns all stored cookies
func (s *Storage) ListCookies(ctx context.Context) ([]*storage.CookieRecord, error) {
	var cookies []*storage.CookieRecord

	err := s.view(bucketCookies, func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			var c storage.CookieRecord
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal cookie %q: %w", k, err)
			}
			cookies = append(cookies, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return cookies, nil
}

// ClearCookies removes all cookies
func (s *Storage) ClearCookies(ctx context.Context) error {
	return s.update(bucketCookies, func(b *bbolt.Bucket) error {
		// Ключи собираются заранее: удаление во время ForEach запрещено
		var keys [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to delete cookie: %w", err)
			}
		}
		return nil
	})
}
