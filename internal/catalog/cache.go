package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/beexponential/insights/internal/tenant"
	"github.com/beexponential/insights/pkg/metrics"
)

type entry struct {
	value   any
	expires time.Time
}

// Cached memoizes a Catalog per tenant for TTL. Calculated fields are always
// read through: a dialog refetches them on open.
type Cached struct {
	Inner Catalog
	TTL   time.Duration

	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewCached wraps inner with a ttl cache.
func NewCached(inner Catalog, ttl time.Duration) *Cached {
	return &Cached{Inner: inner, TTL: ttl, items: make(map[string]entry), now: time.Now}
}

func (c *Cached) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *Cached) put(key string, v any) {
	c.mu.Lock()
	c.items[key] = entry{value: v, expires: c.now().Add(c.TTL)}
	c.mu.Unlock()
}

// Invalidate drops every cached entry.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.items = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cached) ListTables(ctx context.Context, schema string) ([]Table, error) {
	key := tenant.FromContext(ctx) + "|tables|" + schema
	if v, ok := c.get(key); ok {
		metrics.CacheHits.Inc()
		return append([]Table(nil), v.([]Table)...), nil
	}
	metrics.CacheMisses.Inc()
	res, err := c.Inner.ListTables(ctx, schema)
	if err != nil {
		return nil, err
	}
	c.put(key, res)
	return append([]Table(nil), res...), nil
}

func (c *Cached) ListColumns(ctx context.Context, table, typeFilter string) ([]Column, error) {
	key := tenant.FromContext(ctx) + "|columns|" + table + "|" + typeFilter
	if v, ok := c.get(key); ok {
		metrics.CacheHits.Inc()
		return append([]Column(nil), v.([]Column)...), nil
	}
	metrics.CacheMisses.Inc()
	res, err := c.Inner.ListColumns(ctx, table, typeFilter)
	if err != nil {
		return nil, err
	}
	c.put(key, res)
	return append([]Column(nil), res...), nil
}

func (c *Cached) ListCalculatedFields(ctx context.Context) ([]CalculatedField, error) {
	return c.Inner.ListCalculatedFields(ctx)
}
