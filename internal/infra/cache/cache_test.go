package cache_test

import (
	"testing"
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/ncaco/2026-idea-mvp-01/internal/infra/cache"
	"github.com/ncaco/2026-idea-mvp-01/internal/port"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

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

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_JanitorEvictsExpired(t *testing.T) {
	c := cache.New[string](20 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	time.Sleep(150 * time.Millisecond)

	if n := c.Len(); n != 0 {
		t.Errorf("expected expired entries to be evicted, got %d", n)
	}
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := cache.New[string](0)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(10 * time.Millisecond)

	if v, ok := c.Get("key1"); !ok || v != "value1" {
		t.Errorf("expected value1, got %q (found %v)", v, ok)
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	c.Close()
}

func TestRistretto_SetAndGet(t *testing.T) {
	c, err := cache.NewRistretto[[]domain.Category](time.Minute, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	var _ port.Cache[[]domain.Category] = c

	c.Set("categories", []domain.Category{{ID: 1, Name: "식비", Type: "expense"}})
	got, ok := c.Get("categories")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if len(got) != 1 || got[0].Name != "식비" {
		t.Errorf("unexpected value: %+v", got)
	}

	c.Delete("categories")
	if _, ok := c.Get("categories"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestRistretto_Expiration(t *testing.T) {
	c, err := cache.NewRistretto[string](50*time.Millisecond, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(200 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}
