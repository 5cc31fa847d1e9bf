package cache_test

import (
	"bytes"
	"testing"

	"docvault/internal/cache"
)

func newCache(t *testing.T, maxSize, maxEntry int64) *cache.Cache {
	t.Helper()
	c, err := cache.New(maxSize, maxEntry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	if _, err := cache.New(0, 10); err == nil {
		t.Error("New(0) should fail")
	}
}

func TestCache_LoadMatchesChecksum(t *testing.T) {
	c := newCache(t, 100, 0)
	c.Save("/items/docs/a.txt", "sum1", []byte("hello"))

	t.Run("same checksum hits", func(t *testing.T) {
		data, ok := c.Load("/items/docs/a.txt", "sum1")
		if !ok {
			t.Fatal("Load() missed")
		}
		if !bytes.Equal(data, []byte("hello")) {
			t.Errorf("Load() = %q, want %q", data, "hello")
		}
	})

	t.Run("other checksum misses", func(t *testing.T) {
		if _, ok := c.Load("/items/docs/a.txt", "sum2"); ok {
			t.Error("Load() with a different checksum should miss")
		}
	})

	t.Run("unknown path misses", func(t *testing.T) {
		if _, ok := c.Load("/items/docs/b.txt", "sum1"); ok {
			t.Error("Load() of an unknown path should miss")
		}
	})
}

func TestCache_SaveCopiesData(t *testing.T) {
	c := newCache(t, 100, 0)
	buf := []byte("hello")
	c.Save("p", "s", buf)
	buf[0] = 'j'

	data, _ := c.Load("p", "s")
	if string(data) != "hello" {
		t.Errorf("cached data = %q, want %q", data, "hello")
	}
}

func TestCache_ReplaceAdjustsSize(t *testing.T) {
	c := newCache(t, 100, 0)
	c.Save("p", "s1", make([]byte, 40))
	c.Save("p", "s2", make([]byte, 10))

	if got := c.Size(); got != 10 {
		t.Errorf("Size() = %d, want 10", got)
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if _, ok := c.Load("p", "s1"); ok {
		t.Error("Load() of replaced checksum should miss")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, 100, 0)
	c.Save("a", "s", make([]byte, 40))
	c.Save("b", "s", make([]byte, 40))

	// Touch a so b becomes the oldest.
	if _, ok := c.Load("a", "s"); !ok {
		t.Fatal("Load(a) missed")
	}
	c.Save("c", "s", make([]byte, 40))

	if _, ok := c.Load("b", "s"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Load("a", "s"); !ok {
		t.Error("a should still be cached")
	}
	if _, ok := c.Load("c", "s"); !ok {
		t.Error("c should be cached")
	}
	if got := c.Size(); got != 80 {
		t.Errorf("Size() = %d, want 80", got)
	}
}

func TestCache_PerEntryLimit(t *testing.T) {
	c := newCache(t, 100, 10)
	c.Save("small", "s", make([]byte, 10))
	c.Save("big", "s", make([]byte, 11))

	if _, ok := c.Load("big", "s"); ok {
		t.Error("entry over the per-entry limit should not be cached")
	}
	if _, ok := c.Load("small", "s"); !ok {
		t.Error("entry at the limit should be cached")
	}

	// An oversize save drops the stale entry for the same path.
	c.Save("small", "s2", make([]byte, 50))
	if _, ok := c.Load("small", "s"); ok {
		t.Error("stale entry should be dropped by an oversize save")
	}
	if got := c.Size(); got != 0 {
		t.Errorf("Size() = %d, want 0", got)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := newCache(t, 100, 0)
	c.Save("a", "s", []byte("aaa"))
	c.Save("b", "s", []byte("bbb"))

	c.Delete("a")
	if _, ok := c.Load("a", "s"); ok {
		t.Error("Load() after Delete() should miss")
	}
	if got := c.Size(); got != 3 {
		t.Errorf("Size() after Delete() = %d, want 3", got)
	}

	c.Clear()
	if got := c.Len(); got != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", got)
	}
	if got := c.Size(); got != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", got)
	}
}
