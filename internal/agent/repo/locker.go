// Package repo holds the per-user turn locks that keep one dialog turn per
// user in flight.
package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	errx "github.com/fitcoach-core/server/internal/core/error"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// releaseScript deletes the lock only while it still holds the caller's
// token, so an expired holder never frees someone else's turn.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisTurnLocker struct {
	rdb redis.Cmdable
}

func NewRedisTurnLocker(rdb redis.Cmdable) *RedisTurnLocker {
	return &RedisTurnLocker{rdb: rdb}
}

func (r *RedisTurnLocker) turnKey(userID string) string {
	return fmt.Sprintf("onboarding:%s:turn", userID)
}

// Acquire takes the user's turn lock for at most ttl.
func (r *RedisTurnLocker) Acquire(ctx context.Context, userID string, ttl time.Duration) (func(context.Context) error, error) {
	key := r.turnKey(userID)
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to acquire turn lock")
		return nil, errx.WrapRedis(err)
	}
	if !ok {
		return nil, errx.TurnInProgress()
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logx.Error().Err(err).Str("key", key).Msg("failed to release turn lock")
			return errx.WrapRedis(err)
		}
		return nil
	}, nil
}

// MemoryTurnLocker is the single-process locker used when Redis is not
// configured.
type MemoryTurnLocker struct {
	mu    sync.Mutex
	held  map[string]memoryLock
	clock func() time.Time
}

type memoryLock struct {
	token   string
	expires time.Time
}

func NewMemoryTurnLocker() *MemoryTurnLocker {
	return &MemoryTurnLocker{held: map[string]memoryLock{}, clock: time.Now}
}

func (m *MemoryTurnLocker) Acquire(_ context.Context, userID string, ttl time.Duration) (func(context.Context) error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if l, ok := m.held[userID]; ok && now.Before(l.expires) {
		return nil, errx.TurnInProgress()
	}
	token := uuid.NewString()
	m.held[userID] = memoryLock{token: token, expires: now.Add(ttl)}
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if l, ok := m.held[userID]; ok && l.token == token {
			delete(m.held, userID)
		}
		return nil
	}, nil
}
