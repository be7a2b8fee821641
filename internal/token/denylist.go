package token

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistKeyPrefix = "token:revoked:"

// Denylist records revoked token IDs in redis. Entries expire with the token
// itself, so the list stays bounded by the token TTL.
type Denylist struct {
	client *redis.Client
}

// NewDenylist constructs a Denylist.
func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client}
}

// Revoke marks a jti revoked until the given expiry. A zero expiry falls back
// to 24h, which outlives any token we issue.
func (d *Denylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return errors.New("token: empty jti")
	}
	ttl := 24 * time.Hour
	if !until.IsZero() {
		if remaining := time.Until(until); remaining > 0 {
			ttl = remaining
		} else {
			// Already expired; nothing to revoke.
			return nil
		}
	}
	return d.client.Set(ctx, denylistKeyPrefix+jti, "1", ttl).Err()
}

// Revoked reports whether a jti is on the list.
func (d *Denylist) Revoked(ctx context.Context, jti string) (bool, error) {
	err := d.client.Get(ctx, denylistKeyPrefix+jti).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
