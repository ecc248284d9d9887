package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked access token ids until they would have expired.
type Blacklist interface {
	Add(ctx context.Context, tokenID string, ttl time.Duration) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// RedisBlacklist keeps revoked ids under "blacklist:access:<id>".
// A nil client turns every call into a no-op.
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(c *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: c}
}

func (b *RedisBlacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if b.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return b.client.Set(ctx, "blacklist:access:"+tokenID, "1", ttl).Err()
}

func (b *RedisBlacklist) Contains(ctx context.Context, tokenID string) (bool, error) {
	if b.client == nil {
		return false, nil
	}
	exists, err := b.client.Exists(ctx, "blacklist:access:"+tokenID).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MemoryBlacklist is the in-process Blacklist.
type MemoryBlacklist struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{until: map[string]time.Time{}, now: time.Now}
}

func (b *MemoryBlacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until[tokenID] = b.now().Add(ttl)
	return nil
}

func (b *MemoryBlacklist) Contains(ctx context.Context, tokenID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.until[tokenID]
	if !ok {
		return false, nil
	}
	if b.now().After(exp) {
		delete(b.until, tokenID)
		return false, nil
	}
	return true, nil
}
