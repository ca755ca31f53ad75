package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/leadsauth/internal/client/storage"
)

var profileKey = []byte("current")

// SaveProfile stores the last confirmed session profile
func (s *Storage) SaveProfile(ctx context.Context, p *storage.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	return s.update(bucketProfile, func(b *bbolt.Bucket) error {
		if err := b.Put(profileKey, data); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		return nil
	})
}

// GetProfile retrieves the stored profile
func (s *Storage) GetProfile(ctx context.Context) (*storage.Profile, error) {
	var p *storage.Profile

	err := s.view(bucketProfile, func(b *bbolt.Bucket) error {
		data := b.Get(profileKey)
		if data == nil {
			return storage.ErrProfileNotFound
		}

		p = &storage.Profile{}
		if err := json.Unmarshal(data, p); err != nil {
			return fmt.Errorf("failed to unmarshal profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// DeleteProfile removes the stored profile
func (s *Storage) DeleteProfile(ctx context.Context) error {
	return s.update(bucketProfile, func(b *bbolt.Bucket) error {
		if err := b.Delete(profileKey); err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		return nil
	})
}
