package embedding

import (
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	a := CacheKey("m", 256, "a")
	if v, ok := c.Get(a); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set(a, []float32{1, 2, 3})
	v, ok := c.Get(a)
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set(CacheKey("m", 256, "b"), []float32{4, 5})
	c.Set(CacheKey("m", 256, "c"), []float32{6}) // evicts a
	if _, ok := c.Get(a); ok {
		t.Error("expected a to be evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_RecentlyUsedSurvives(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")
	c.Set("c", []float32{3}) // evicts b
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain after use")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
}

func TestCacheKey(t *testing.T) {
	if CacheKey("m", 256, "x") == CacheKey("m", 512, "x") {
		t.Error("keys must differ by dimensions")
	}
	if CacheKey("m1", 256, "x") == CacheKey("m2", 256, "x") {
		t.Error("keys must differ by model")
	}
}
