// Package rules supplies rule-set snapshots to the scoring engine. A Cache
// wraps any Loader with get-or-refresh semantics over a cache.Store and keeps
// the last good snapshot for when the loader fails.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/platform/cache"
	"lead_scoring_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL = 5 * time.Minute
	cacheKey   = "scoring:ruleset:v1"
)

// Provider returns the rule set to evaluate against.
type Provider interface {
	Snapshot(ctx context.Context) (domain.RuleSet, error)
}

// Loader reads rules from their source of truth.
type Loader interface {
	Load(ctx context.Context) (domain.RuleSet, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (domain.RuleSet, error)

func (f LoaderFunc) Load(ctx context.Context) (domain.RuleSet, error) {
	return f(ctx)
}

type envelope struct {
	FetchedAt time.Time      `json:"fetchedAt"`
	Rules     domain.RuleSet `json:"rules"`
}

// Cache is a Provider backed by a Loader and a cache.Store.
type Cache struct {
	loader Loader
	store  cache.Store
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	lastGood *envelope
}

// NewCache creates a rule cache. A non-positive ttl uses DefaultTTL.
func NewCache(loader Loader, store cache.Store, ttl time.Duration, log *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		loader: loader,
		store:  store,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

// Snapshot returns cached rules while they are fresh and reloads them
// otherwise. Concurrent reloads are collapsed into one loader call. When the
// loader fails the last good snapshot is served.
func (c *Cache) Snapshot(ctx context.Context) (domain.RuleSet, error) {
	if env, ok := c.fresh(ctx); ok {
		return env.Rules, nil
	}

	result, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err == nil {
		return result.(*envelope).Rules, nil
	}

	if stale := c.last(); stale != nil {
		c.log.Warn("rule refresh failed, serving stale rules",
			"error", err,
			"fetched_at", stale.FetchedAt,
			"rules", stale.Rules.Size(),
		)
		return stale.Rules, nil
	}
	return domain.RuleSet{}, fmt.Errorf("load scoring rules: %w", err)
}

// Refresh forces a reload from the loader.
func (c *Cache) Refresh(ctx context.Context) (domain.RuleSet, error) {
	result, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("refresh scoring rules: %w", err)
	}
	return result.(*envelope).Rules, nil
}

// Invalidate drops the shared cached copy and expires the local one so the
// next Snapshot reloads. The expired snapshot is still used as a fallback.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	if c.lastGood != nil {
		expired := *c.lastGood
		expired.FetchedAt = time.Time{}
		c.lastGood = &expired
	}
	c.mu.Unlock()
	return c.store.Delete(ctx, cacheKey)
}

func (c *Cache) fresh(ctx context.Context) (*envelope, bool) {
	if env := c.last(); env != nil && c.now().Sub(env.FetchedAt) < c.ttl {
		return env, true
	}

	data, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.log.Warn("rule cache read failed", "error", err)
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("rule cache entry is corrupt", "error", err)
		return nil, false
	}
	if c.now().Sub(env.FetchedAt) >= c.ttl {
		return nil, false
	}
	c.remember(&env)
	return &env, true
}

func (c *Cache) refresh(ctx context.Context) (*envelope, error) {
	set, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	env := &envelope{FetchedAt: c.now().UTC(), Rules: set}
	c.remember(env)

	data, err := json.Marshal(env)
	if err != nil {
		return env, nil
	}
	if err := c.store.Set(ctx, cacheKey, data, c.ttl); err != nil {
		c.log.Warn("rule cache write failed", "error", err)
	}
	c.log.Debug("scoring rules refreshed", "rules", set.Size())
	return env, nil
}

func (c *Cache) last() *envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastGood
}

func (c *Cache) remember(env *envelope) {
	c.mu.Lock()
	c.lastGood = env
	c.mu.Unlock()
}
