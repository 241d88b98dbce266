package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore records revoked token ids until the token would have
// expired anyway.
type RevocationStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRevocationStore(client *redis.Client, keyPrefix string) *RevocationStore {
	return &RevocationStore{client: client, prefix: keyPrefix + "revoked:", now: time.Now}
}

// Revoke denies tokenID until expiresAt. Already expired tokens are ignored.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("token id is required")
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.prefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether tokenID was revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
