package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/fitcoach-core/server/internal/agent/agents"
	"github.com/fitcoach-core/server/internal/agent/model"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

type cacheKey struct {
	userID string
	kind   model.AgentKind
}

type cacheEntry struct {
	agent    agents.Agent
	lastUsed time.Time
}

// agentCache keeps voice-session agents alive between turns. Entries idle
// for longer than ttl are dropped on the next access.
type agentCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[cacheKey]*cacheEntry
}

func newAgentCache(ttl time.Duration, now func() time.Time) *agentCache {
	return &agentCache{ttl: ttl, now: now, entries: map[cacheKey]*cacheEntry{}}
}

func (c *agentCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.lastUsed) > c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *agentCache) get(key cacheKey) (agents.Agent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweep(now)
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e.lastUsed = now
	return e.agent, true
}

func (c *agentCache) put(key cacheKey, a agents.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{agent: a, lastUsed: c.now()}
}

func (c *agentCache) evictUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if k.userID == userID {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *agentCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// WarmUp builds and caches the agent that will serve the user's next voice
// turn and makes a minimal model round trip so the first real turn does not
// pay the connection setup.
func (o *Orchestrator) WarmUp(ctx context.Context, userID string) (model.AgentKind, error) {
	row, err := o.store.Load(ctx, userID)
	if err != nil {
		return "", err
	}
	kind := resolveKind(row)
	a, err := o.agentFor(ctx, userID, kind, row.Snapshot(o.now()), true)
	if err != nil {
		return "", err
	}
	if err := a.WarmUp(ctx); err != nil {
		return "", err
	}
	logx.Info().Str("user_id", userID).Str("agent", kind.String()).Msg("voice session warmed up")
	return kind, nil
}

// EndVoiceSession drops every cached agent of the user.
func (o *Orchestrator) EndVoiceSession(userID string) {
	n := o.voice.evictUser(userID)
	logx.Info().Str("user_id", userID).Int("agents", n).Msg("voice session ended")
}
