// Package tokens tracks which bearer tokens are still active so that logout can
// revoke a token before it expires.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/angelmondragon/storefront/pkg/redis"
)

type registryStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type registryKeyer interface {
	AccessSessionKey(accessID string) string
}

// ActiveChecker exposes the read-only surface needed by middleware.
type ActiveChecker interface {
	IsActive(ctx context.Context, accessID string) (bool, error)
}

// Registry records issued token ids (jti) in Redis for the lifetime of the token.
type Registry struct {
	store registryStore
	keyer registryKeyer
	ttl   time.Duration
}

// NewRegistry constructs a registry backed by Redis.
func NewRegistry(client *redisclient.Client, ttl time.Duration) (*Registry, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Registry{store: client, keyer: client, ttl: ttl}, nil
}

// Register marks accessID as active for userID.
func (r *Registry) Register(ctx context.Context, accessID, userID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return r.store.Set(ctx, r.keyer.AccessSessionKey(accessID), userID, r.ttl)
}

// Revoke deletes the registration tied to the access identifier.
func (r *Registry) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return r.store.Del(ctx, r.keyer.AccessSessionKey(accessID))
}

// IsActive reports whether accessID is still registered.
func (r *Registry) IsActive(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := r.store.Get(ctx, r.keyer.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
