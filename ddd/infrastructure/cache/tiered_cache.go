package cache

import (
	"context"

	"lingo-service/ddd/domain/port"
)

// TieredCache reads the local cache first and falls back to the shared one,
// back-filling the local tier on a shared hit.
type TieredCache struct {
	local  port.TranslationCache
	shared port.TranslationCache
}

func NewTieredCache(local, shared port.TranslationCache) *TieredCache {
	return &TieredCache{local: local, shared: shared}
}

func (c *TieredCache) Get(ctx context.Context, key string) (string, bool) {
	if v, ok := c.local.Get(ctx, key); ok {
		return v, true
	}
	v, ok := c.shared.Get(ctx, key)
	if ok {
		c.local.PutIfAbsent(ctx, key, v)
	}
	return v, ok
}

// PutIfAbsent writes the shared tier first; if another process won, its value is
// adopted locally so both tiers agree.
func (c *TieredCache) PutIfAbsent(ctx context.Context, key, value string) bool {
	if !c.shared.PutIfAbsent(ctx, key, value) {
		if v, ok := c.shared.Get(ctx, key); ok {
			value = v
		}
		c.local.PutIfAbsent(ctx, key, value)
		return false
	}
	return c.local.PutIfAbsent(ctx, key, value)
}
