package rules

import (
	"context"
	"sync"
	"time"
)

// CachedSource wraps a Source with a bounded-staleness snapshot, so the
// evaluator never blocks on repository I/O mid-cycle. Invalidate is the
// hook exposed to the rule-management collaborator.
type CachedSource struct {
	inner Source
	ttl   time.Duration

	mu       sync.RWMutex
	rules    []Rule
	hash     string
	cachedAt time.Time
}

var _ Source = (*CachedSource)(nil)

func NewCachedSource(inner Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner: inner,
		ttl:   ttl,
	}
}

func (c *CachedSource) ListActiveRules(ctx context.Context) ([]Rule, string, error) {
	c.mu.RLock()
	if !c.cachedAt.IsZero() && time.Since(c.cachedAt) < c.ttl {
		out, hash := c.rules, c.hash
		c.mu.RUnlock()
		return out, hash, nil
	}
	c.mu.RUnlock()

	return c.refresh(ctx)
}

func (c *CachedSource) refresh(ctx context.Context) ([]Rule, string, error) {
	out, hash, err := c.inner.ListActiveRules(ctx)
	if err != nil {
		// serve the stale snapshot if there is one; evaluation reads the
		// most recently cached rule set rather than failing the cycle
		c.mu.RLock()
		defer c.mu.RUnlock()
		if !c.cachedAt.IsZero() {
			return c.rules, c.hash, nil
		}
		return nil, "", err
	}
	c.mu.Lock()
	c.rules = out
	c.hash = hash
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return out, hash, nil
}

// Invalidate drops the snapshot so the next read hits the inner source.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
