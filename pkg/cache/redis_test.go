package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"shortlink/pkg/domain"
)

func setupCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c := NewRedisCacheFromClient(client, time.Hour)
	t.Cleanup(func() { _ = c.Close() })

	return srv, c
}

func TestKeys(t *testing.T) {
	if URLKey("abc1234") != "url:abc1234" {
		t.Errorf("unexpected url key: %s", URLKey("abc1234"))
	}
	if ClickBufferKey("click_buffer", "abc") != "click_buffer:abc" {
		t.Errorf("unexpected buffer key")
	}
	if AggHashKey("ingestion_agg", "consumer-1") != "ingestion_agg:consumer-1" {
		t.Errorf("unexpected agg key")
	}
	if AllocatorKey("id_allocator:url", "primary_writers") != "id_allocator:url:primary_writers" {
		t.Errorf("unexpected allocator key")
	}
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(val) != "v" {
		t.Errorf("got %q, want %q", val, "v")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestRedisCache_IncrBy(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	// Counter starts lazily and advances atomically
	end, err := c.IncrBy(ctx, "id_allocator:url:primary_writers", 1000)
	if err != nil {
		t.Fatalf("incrby failed: %v", err)
	}
	if end != 1000 {
		t.Errorf("first INCRBY = %d, want 1000", end)
	}

	end, err = c.IncrBy(ctx, "id_allocator:url:primary_writers", 500)
	if err != nil {
		t.Fatalf("incrby failed: %v", err)
	}
	if end != 1500 {
		t.Errorf("second INCRBY = %d, want 1500", end)
	}
}

func TestRedisCache_URLRoundTrip(t *testing.T) {
	srv, c := setupCache(t)
	ctx := context.Background()

	u := &domain.URL{
		ID:          1,
		ShortCode:   "0000abc",
		OriginalURL: "https://example.com/a",
		Clicks:      3,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		UpdatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	if err := c.SetURL(ctx, u); err != nil {
		t.Fatalf("SetURL failed: %v", err)
	}

	got := c.GetURL(ctx, "0000abc")
	if got == nil {
		t.Fatal("GetURL returned nil after SetURL")
	}
	if got.OriginalURL != u.OriginalURL || got.Clicks != 3 {
		t.Errorf("unexpected record: %+v", got)
	}

	// TTL must be bounded
	if srv.TTL(URLKey("0000abc")) <= 0 {
		t.Error("cached url should carry a TTL")
	}

	if err := c.InvalidateURL(ctx, "0000abc"); err != nil {
		t.Fatalf("InvalidateURL failed: %v", err)
	}
	if c.GetURL(ctx, "0000abc") != nil {
		t.Error("GetURL should miss after invalidation")
	}
}

func TestRedisCache_GetURL_FailOpen(t *testing.T) {
	srv, c := setupCache(t)
	ctx := context.Background()

	// Miss
	if c.GetURL(ctx, "nope") != nil {
		t.Error("miss should return nil")
	}

	// Corrupted payload
	srv.Set(URLKey("bad"), "{not json")
	if c.GetURL(ctx, "bad") != nil {
		t.Error("corrupted payload should return nil, not panic")
	}
}

func TestRedisCache_Ping(t *testing.T) {
	srv, c := setupCache(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	srv.Close()
	if err := c.Ping(ctx); err == nil {
		t.Error("ping should fail after server shutdown")
	}
}
