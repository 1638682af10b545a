// Package cache memoizes model answers keyed by the fully-instantiated
// question text and run context. The cache is the one piece of shared
// mutable state in a consistency run: many collapse plans re-ask identical
// sub-questions, and the cache bounds the number of model calls.
package cache

import (
	"context"
	"sync"

	"github.com/dusk-indust/toqcheck/internal/qa"
	"golang.org/x/sync/singleflight"
)

// Key identifies one memoized answer.
type Key struct {
	Question string
	Context  string
}

// flightKey flattens a Key for singleflight, which groups by string.
func (k Key) flightKey() string {
	return k.Question + "\x00" + k.Context
}

// ComputeFunc produces the answer for a key on a cache miss.
type ComputeFunc func(ctx context.Context) (qa.Answer, error)

// Cache maps instantiated questions to answers. Implementations must be safe
// for concurrent use and must coalesce duplicate concurrent lookups for the
// same key into a single underlying call.
type Cache interface {
	// GetOrCompute returns the cached answer for key, invoking fn at most
	// once per key across all concurrent callers on a miss. Errors are not
	// cached; a later lookup retries.
	GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) (qa.Answer, error)

	// Len returns the number of completed entries.
	Len() int
}

// Compile-time check that MemCache satisfies Cache.
var _ Cache = (*MemCache)(nil)

// MemCache is the in-memory Cache used for a single run. A caller may keep
// one instance across runs to share memoized answers.
type MemCache struct {
	mu      sync.RWMutex
	entries map[Key]qa.Answer
	group   singleflight.Group
}

// NewMemCache returns an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[Key]qa.Answer)}
}

// GetOrCompute implements Cache.
func (c *MemCache) GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) (qa.Answer, error) {
	c.mu.RLock()
	ans, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return ans, nil
	}

	v, err, _ := c.group.Do(key.flightKey(), func() (any, error) {
		// Re-check under the flight: another caller may have completed the
		// entry between the read above and joining the group.
		c.mu.RLock()
		ans, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return ans, nil
		}

		ans, err := fn(ctx)
		if err != nil {
			return qa.Answer{}, err
		}

		c.mu.Lock()
		c.entries[key] = ans
		c.mu.Unlock()
		return ans, nil
	})
	if err != nil {
		return qa.Answer{}, err
	}
	return v.(qa.Answer), nil
}

// Len implements Cache.
func (c *MemCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
