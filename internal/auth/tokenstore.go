package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnknownRefreshToken is returned for refresh tokens that were never
// stored, were revoked, or have expired.
var ErrUnknownRefreshToken = errors.New("unknown refresh token")

// TokenStore remembers issued refresh tokens so they can be rotated and
// revoked.
type TokenStore interface {
	Save(ctx context.Context, token, subject string, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// RedisTokenStore keeps refresh tokens as expiring Redis keys.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenStore creates a store using keys under "attendance:refresh:".
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: "attendance:refresh:"}
}

func (s *RedisTokenStore) Save(ctx context.Context, token, subject string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.prefix+token, subject, ttl).Err()
}

func (s *RedisTokenStore) Lookup(ctx context.Context, token string) (string, error) {
	subject, err := s.client.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnknownRefreshToken
	}
	return subject, err
}

func (s *RedisTokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.prefix+token).Err()
}

// MemoryTokenStore is an in-process TokenStore for dev/testing.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryEntry
}

type memoryEntry struct {
	subject   string
	expiresAt time.Time
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memoryEntry)}
}

func (s *MemoryTokenStore) Save(_ context.Context, token, subject string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = memoryEntry{subject: subject, expiresAt: expiresAt}
	return nil
}

func (s *MemoryTokenStore) Lookup(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tokens[token]
	if !ok {
		return "", ErrUnknownRefreshToken
	}
	if !time.Now().Before(e.expiresAt) {
		delete(s.tokens, token)
		return "", ErrUnknownRefreshToken
	}
	return e.subject, nil
}

func (s *MemoryTokenStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
