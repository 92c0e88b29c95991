package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/angelmondragon/storefront/pkg/redis"
)

type payloadStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Store persists sessions as JSON blobs in Redis with a sliding TTL.
type Store struct {
	kv    payloadStore
	keyer sessionKeyer
	ttl   time.Duration
}

// NewStore constructs a Redis-backed session store.
func NewStore(client *redisclient.Client, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newStore(client, client, ttl)
}

func newStore(kv payloadStore, keyer sessionKeyer, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Store{kv: kv, keyer: keyer, ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Load returns the session stored under id. Unknown, expired or malformed ids
// yield a brand new session rather than an error.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return New(), nil
	}
	payload, err := s.kv.Get(ctx, s.keyer.SessionKey(id))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return New(), nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return New(), nil
	}
	return restore(id, values), nil
}

// Save writes the session and refreshes its TTL. A rotated session also drops
// the payload stored under its previous identifier. Empty new sessions are not
// written at all.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if prev := sess.PreviousID(); prev != "" {
		if err := s.kv.Del(ctx, s.keyer.SessionKey(prev)); err != nil {
			return fmt.Errorf("drop rotated session: %w", err)
		}
		sess.previousID = ""
	}
	if sess.isNew && sess.Len() == 0 {
		return nil
	}
	payload, err := sess.snapshot()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, s.keyer.SessionKey(sess.ID()), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.isNew = false
	sess.modified = false
	return nil
}

// Delete removes the stored session.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.kv.Del(ctx, s.keyer.SessionKey(id))
}
