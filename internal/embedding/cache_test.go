package embedding

import (
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestEmbeddingCache_GetRefreshesRecency(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")
	c.Set("c", []float32{3}) // evicts b, the least recently used
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
}

func TestEmbeddingCache_ReturnsCopies(t *testing.T) {
	c := NewEmbeddingCache(1)
	orig := []float32{1, 2}
	c.Set("q", orig)
	orig[0] = 9

	v, _ := c.Get("q")
	if v[0] != 1 {
		t.Errorf("cache aliased the stored slice: %v", v)
	}
	v[1] = 9
	if again, _ := c.Get("q"); again[1] != 2 {
		t.Errorf("cache aliased the returned slice: %v", again)
	}
}

func TestEmbeddingCache_Disabled(t *testing.T) {
	c := NewEmbeddingCache(0)
	c.Set("a", []float32{1})
	if _, ok := c.Get("a"); ok {
		t.Error("disabled cache should never hit")
	}
}
