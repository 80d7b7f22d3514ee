package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/fitcoach-core/server/internal/core/error"
)

type locker interface {
	Acquire(ctx context.Context, userID string, ttl time.Duration) (func(context.Context) error, error)
}

func newRedisLocker(t *testing.T) (*RedisTurnLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisTurnLocker(rdb), mr
}

func TestTurnLockers(t *testing.T) {
	redisLocker, _ := newRedisLocker(t)
	tests := []struct {
		name   string
		locker locker
	}{
		{"redis", redisLocker},
		{"memory", NewMemoryTurnLocker()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			release, err := tt.locker.Acquire(ctx, "u1", time.Minute)
			require.NoError(t, err)

			_, err = tt.locker.Acquire(ctx, "u1", time.Minute)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errx.ErrTurnInProgress))

			other, err := tt.locker.Acquire(ctx, "u2", time.Minute)
			require.NoError(t, err)
			require.NoError(t, other(ctx))

			require.NoError(t, release(ctx))
			again, err := tt.locker.Acquire(ctx, "u1", time.Minute)
			require.NoError(t, err)
			require.NoError(t, again(ctx))
		})
	}
}

func TestRedisLockExpiresAndStaleReleaseKeepsNewHolder(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "u1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = l.Acquire(ctx, "u1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("onboarding:u1:turn"))

	_, err = l.Acquire(ctx, "u1", time.Minute)
	assert.True(t, errors.Is(err, errx.ErrTurnInProgress))
}

func TestMemoryLockExpires(t *testing.T) {
	l := NewMemoryTurnLocker()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "u1", time.Second)
	require.NoError(t, err)
	now = now.Add(2 * time.Second)

	_, err = l.Acquire(ctx, "u1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, stale(ctx))

	_, err = l.Acquire(ctx, "u1", time.Minute)
	assert.True(t, errors.Is(err, errx.ErrTurnInProgress))
}

func TestRedisLockerSurfacesConnectionErrors(t *testing.T) {
	l, mr := newRedisLocker(t)
	mr.Close()
	_, err := l.Acquire(context.Background(), "u1", time.Minute)
	require.Error(t, err)
	assert.Equal(t, errx.RedisErrorMessage, errx.MessageOf(err))
}
