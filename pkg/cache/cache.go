// Package cache provides a small in-memory TTL cache for parsed
// trajectories, used in serve mode when the same source files are validated
// repeatedly against different calibrations.
package cache

import (
	"sync"
	"time"

	"github.com/koopmanstack/koopman-verify/internal/models"
)

// TrajectoryCache memoises parsed trajectories by source with expiry.
type TrajectoryCache struct {
	data map[string]item
	ttl  time.Duration
	mu   sync.RWMutex
}

type item struct {
	traj      models.Trajectory
	expiresAt time.Time
}

// New creates a cache whose entries live for ttl. A non-positive ttl yields
// a nil cache, which every method treats as a miss.
func New(ttl time.Duration) *TrajectoryCache {
	if ttl <= 0 {
		return nil
	}
	return &TrajectoryCache{data: make(map[string]item), ttl: ttl}
}

// Get returns the cached trajectory for source, if present and fresh.
func (c *TrajectoryCache) Get(source string) (models.Trajectory, bool) {
	if c == nil {
		return models.Trajectory{}, false
	}
	c.mu.RLock()
	entry, ok := c.data[source]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return models.Trajectory{}, false
	}
	return entry.traj, true
}

// Set stores a parsed trajectory, replacing any stale entry.
func (c *TrajectoryCache) Set(source string, traj models.Trajectory) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.data[source] = item{traj: traj, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Purge drops expired entries. Callers invoke it opportunistically; there is
// no background janitor.
func (c *TrajectoryCache) Purge() {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of entries currently held, including expired ones
// not yet purged.
func (c *TrajectoryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
