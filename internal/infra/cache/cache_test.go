package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/elowen/skin-coach-bfa-go/internal/infra/cache"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_TouchSlidesExpiry(t *testing.T) {
	c := cache.New[string](80 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	for range 4 {
		time.Sleep(40 * time.Millisecond)
		if _, ok := c.Touch("key1"); !ok {
			t.Fatal("expected touched entry to stay alive")
		}
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key to be deleted")
	}
}

type evictions struct {
	mu   sync.Mutex
	keys []string
}

func (e *evictions) record(key string, _ int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, key)
}

func (e *evictions) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.keys)
}

func TestCache_OnEvictFiresForDeleteExpiryAndClose(t *testing.T) {
	ev := &evictions{}
	c := cache.New[int](30*time.Millisecond, cache.WithOnEvict(ev.record))

	c.Set("deleted", 1)
	c.Delete("deleted")
	c.Delete("deleted") // already gone, no callback
	if got := ev.count(); got != 1 {
		t.Fatalf("expected 1 eviction after delete, got %d", got)
	}

	c.Set("expired", 2)
	deadline := time.Now().Add(time.Second)
	for ev.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := ev.count(); got != 2 {
		t.Fatalf("expected expired entry to be evicted, got %d evictions", got)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}

	c.Set("open", 3)
	c.Close()
	if got := ev.count(); got != 3 {
		t.Errorf("expected Close to evict remaining entries, got %d", got)
	}
}

func TestCache_ExpiredEntryEvictedWithinQuarterTTL(t *testing.T) {
	const ttl = 200 * time.Millisecond
	evicted := make(chan time.Time, 1)
	c := cache.New[string](ttl, cache.WithOnEvict(func(string, string) { evicted <- time.Now() }))
	defer c.Close()

	set := time.Now()
	c.Set("key1", "value1")

	select {
	case at := <-evicted:
		if elapsed := at.Sub(set); elapsed < ttl || elapsed > ttl+ttl/2 {
			t.Fatalf("evicted after %v, want within (%v, %v]", elapsed, ttl, ttl+ttl/2)
		}
	case <-time.After(2 * ttl):
		t.Fatal("expired entry was not evicted by the sweeper")
	}
}
