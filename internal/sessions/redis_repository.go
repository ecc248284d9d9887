package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session as a JSON value under prefix+token.
// The key expires together with the session.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository uses "session:" when prefix is empty. Refresh and
// browser sessions share one Redis by using different prefixes.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(token string) string { return r.prefix + token }

func (r *RedisRepository) Save(ctx context.Context, s *Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	// Redis rejects a zero TTL; an already expired session lives one second.
	ttl := max(time.Until(s.ExpiresAt), time.Second)
	if err := r.client.Set(ctx, r.key(s.Token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns nil, nil for unknown or expired tokens.
func (r *RedisRepository) Get(ctx context.Context, token string) (*Session, error) {
	payload, err := r.client.Get(ctx, r.key(token)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}
	s := new(Session)
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !time.Now().Before(s.ExpiresAt) {
		r.client.Del(ctx, r.key(token))
		return nil, nil
	}
	return s, nil
}

func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
