package cache

import (
	"testing"
	"time"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewLRUCache[int](2, 0).OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("k2", "v2")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("got %q ok=%v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0", c.Size())
	}
}

func TestLRUCache_GetOrCreate(t *testing.T) {
	c := NewLRUCache[*int](4, 0)
	calls := 0
	create := func() *int { calls++; v := calls; return &v }

	a := c.GetOrCreate("x", create)
	b := c.GetOrCreate("x", create)
	if a != b || calls != 1 {
		t.Fatalf("create called %d times", calls)
	}

	var purged int
	c.OnEvict(func(string, *int) { purged++ })
	c.Purge()
	if purged != 1 || c.Size() != 0 {
		t.Fatalf("purged=%d size=%d", purged, c.Size())
	}
}
