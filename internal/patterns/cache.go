package patterns

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonflow/salonflow-backend/pkg/logger"
	"github.com/salonflow/salonflow-backend/pkg/redis"
	"go.uber.org/zap"
)

// ProfileCache caches user payment profiles with a TTL. Lookups hit the
// process-local map first and fall back to Redis when one is configured; a
// Redis hit repopulates the local map. The Redis layer is optional and every
// Redis failure degrades to a cache miss.
type ProfileCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
	remote  *redis.Client
}

type cacheEntry struct {
	profile  *UserPaymentProfile
	cachedAt time.Time
}

// NewProfileCache creates a profile cache. remote may be nil to run memory-only.
func NewProfileCache(ttl time.Duration, remote *redis.Client, now func() time.Time) *ProfileCache {
	if now == nil {
		now = time.Now
	}
	return &ProfileCache{
		entries: make(map[uuid.UUID]*cacheEntry),
		ttl:     ttl,
		now:     now,
		remote:  remote,
	}
}

func profileKey(userID uuid.UUID) string {
	return "risk:profile:" + userID.String()
}

// Get returns a cached profile or nil on miss or expiry
func (c *ProfileCache) Get(ctx context.Context, userID uuid.UUID) *UserPaymentProfile {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.cachedAt) < c.ttl {
		return entry.profile
	}

	if c.remote == nil {
		return nil
	}

	data, err := c.remote.GetString(ctx, profileKey(userID))
	if err != nil {
		return nil
	}

	var profile UserPaymentProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		logger.Warn("Discarding malformed cached profile", zap.String("user_id", userID.String()))
		return nil
	}

	c.mu.Lock()
	c.entries[userID] = &cacheEntry{profile: &profile, cachedAt: c.now()}
	c.mu.Unlock()

	return &profile
}

// Set stores a profile in memory and, when configured, in Redis
func (c *ProfileCache) Set(ctx context.Context, profile *UserPaymentProfile) {
	c.mu.Lock()
	c.entries[profile.UserID] = &cacheEntry{profile: profile, cachedAt: c.now()}
	c.mu.Unlock()

	if c.remote == nil {
		return
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.remote.SetWithExpiration(ctx, profileKey(profile.UserID), data, c.ttl); err != nil {
		logger.Warn("Failed to cache profile in redis",
			zap.Error(err),
			zap.String("user_id", profile.UserID.String()),
		)
	}
}

// Invalidate drops a user's cached profile from both layers
func (c *ProfileCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()

	if c.remote != nil {
		_ = c.remote.Delete(ctx, profileKey(userID))
	}
}
