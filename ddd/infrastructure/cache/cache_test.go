package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TestMemoryCacheFirstWriterWins verifies a second write with the same key is a no-op.
func TestMemoryCacheFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(4)
	if !c.PutIfAbsent(ctx, "k", "first") {
		t.Fatal("first write rejected")
	}
	if c.PutIfAbsent(ctx, "k", "second") {
		t.Fatal("second write accepted")
	}
	if v, _ := c.Get(ctx, "k"); v != "first" {
		t.Fatalf("value = %q, want first", v)
	}
}

// TestMemoryCacheEvictsInInsertionOrder verifies FIFO eviction.
func TestMemoryCacheEvictsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(3)
	for i := 0; i < 3; i++ {
		c.PutIfAbsent(ctx, fmt.Sprintf("k%d", i), "v")
	}
	// a read does not refresh the position of k0
	c.Get(ctx, "k0")
	c.PutIfAbsent(ctx, "k3", "v")

	if _, ok := c.Get(ctx, "k0"); ok {
		t.Fatal("oldest entry was not evicted")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Fatalf("%s missing", k)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
}

// TestMemoryCacheConcurrentAccess exercises concurrent upserts and reads.
func TestMemoryCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%80)
				c.PutIfAbsent(ctx, key, key)
				if v, ok := c.Get(ctx, key); ok && v != key {
					t.Errorf("value for %s = %s", key, v)
				}
			}
		}(w)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Fatalf("len = %d exceeds capacity", c.Len())
	}
}

// TestRedisCacheSetNX verifies the shared cache keeps the first writer and expires entries.
func TestRedisCacheSetNX(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache(client, "t:", time.Minute)
	if !c.PutIfAbsent(ctx, "k", "first") || c.PutIfAbsent(ctx, "k", "second") {
		t.Fatal("SETNX semantics violated")
	}
	if v, ok := c.Get(ctx, "k"); !ok || v != "first" {
		t.Fatalf("Get = %q,%v", v, ok)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry survived its ttl")
	}
}

// TestTieredCacheAdoptsSharedValue verifies the local tier is back-filled from the shared tier.
func TestTieredCacheAdoptsSharedValue(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(10)
	shared := NewMemoryCache(10)
	shared.PutIfAbsent(ctx, "k", "remote")

	c := NewTieredCache(local, shared)
	if c.PutIfAbsent(ctx, "k", "mine") {
		t.Fatal("write should lose against the shared tier")
	}
	if v, _ := local.Get(ctx, "k"); v != "remote" {
		t.Fatalf("local = %q, want remote", v)
	}
}
