package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBlacklist_AddContains(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	bl := NewRedisBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))

	ctx := context.Background()
	require.NoError(t, bl.Add(ctx, "jti-1", 2*time.Second))

	ok, err := bl.Contains(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, ok)

	m.FastForward(3 * time.Second)

	ok2, err := bl.Contains(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, ok2)
}

// Ensure blacklist functions are no-ops when no Redis client configured
func TestRedisBlacklist_NoClient_Noop(t *testing.T) {
	bl := NewRedisBlacklist(nil)
	ctx := context.Background()
	require.NoError(t, bl.Add(ctx, "no-client-token", time.Second))
	ok, err := bl.Contains(ctx, "no-client-token")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryBlacklist_Expiry(t *testing.T) {
	now := time.Now()
	bl := NewMemoryBlacklist()
	bl.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, bl.Add(ctx, "jti-2", time.Minute))
	ok, err := bl.Contains(ctx, "jti-2")
	require.NoError(t, err)
	require.True(t, ok)

	bl.now = func() time.Time { return now.Add(2 * time.Minute) }
	ok, err = bl.Contains(ctx, "jti-2")
	require.NoError(t, err)
	require.False(t, ok)
}
