package cache

import (
	"context"
	"sync"
)

// MemoryCache is a bounded FIFO translation cache. Values are immutable strings,
// so a reader holding a value is unaffected by a concurrent eviction of its key.
type MemoryCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]string
	order    []string // ring buffer of keys in insertion order
	head     int
	size     int
}

// NewMemoryCache 创建容量为 capacity 的 FIFO 缓存
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string]string, capacity),
		order:    make([]string, capacity),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// PutIfAbsent stores value unless key exists; the oldest entry is evicted when full.
func (c *MemoryCache) PutIfAbsent(_ context.Context, key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return false
	}
	if c.size == c.capacity {
		oldest := c.order[c.head]
		delete(c.entries, oldest)
		c.order[c.head] = key
		c.head = (c.head + 1) % c.capacity
	} else {
		c.order[(c.head+c.size)%c.capacity] = key
		c.size++
	}
	c.entries[key] = value
	return true
}

// Len 当前条目数
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}
