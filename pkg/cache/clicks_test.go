package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"shortlink/pkg/domain"
)

func TestIncrClickBuffer_TTLOnFirstIncr(t *testing.T) {
	srv, c := setupCache(t)
	ctx := context.Background()

	count, err := c.IncrClickBuffer(ctx, "click_buffer", "abc", 300*time.Second)
	if err != nil {
		t.Fatalf("incr failed: %v", err)
	}
	if count != 1 {
		t.Errorf("first incr = %d, want 1", count)
	}

	ttl := srv.TTL("click_buffer:abc")
	if ttl <= 0 || ttl > 300*time.Second {
		t.Errorf("unexpected TTL after first incr: %v", ttl)
	}

	// Advance the clock; the second increment must not refresh the TTL
	srv.FastForward(100 * time.Second)

	count, err = c.IncrClickBuffer(ctx, "click_buffer", "abc", 300*time.Second)
	if err != nil {
		t.Fatalf("incr failed: %v", err)
	}
	if count != 2 {
		t.Errorf("second incr = %d, want 2", count)
	}
	if got := srv.TTL("click_buffer:abc"); got > 200*time.Second {
		t.Errorf("second incr refreshed TTL: %v", got)
	}
}

func TestFallbackStream_RoundTrip(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.PushFallbackStream(ctx, "click_events", "code-"+strconv.Itoa(i), 1); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	entries, err := c.ReadFallbackStream(ctx, "click_events", 10)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("read %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.ShortCode != "code-"+strconv.Itoa(i) {
			t.Errorf("entry %d short_code = %q", i, e.ShortCode)
		}
		if e.Delta != 1 {
			t.Errorf("entry %d delta = %d, want 1", i, e.Delta)
		}
		if e.ID == "" {
			t.Errorf("entry %d has empty stream id", i)
		}
	}

	// Entries survive until explicitly acked
	again, err := c.ReadFallbackStream(ctx, "click_events", 10)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if len(again) != 3 {
		t.Errorf("entries should remain before ack, got %d", len(again))
	}

	ids := []string{entries[0].ID, entries[1].ID}
	if err := c.AckFallbackEntries(ctx, "click_events", ids); err != nil {
		t.Fatalf("ack failed: %v", err)
	}

	rest, err := c.ReadFallbackStream(ctx, "click_events", 10)
	if err != nil {
		t.Fatalf("read after ack failed: %v", err)
	}
	if len(rest) != 1 || rest[0].ShortCode != "code-2" {
		t.Errorf("unexpected remaining entries: %+v", rest)
	}
}

func TestReadFallbackStream_BoundedBatch(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := c.PushFallbackStream(ctx, "click_events", "c", 1); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	entries, err := c.ReadFallbackStream(ctx, "click_events", 2)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("batch size not honored: got %d", len(entries))
	}
}

func TestAckFallbackEntries_Empty(t *testing.T) {
	_, c := setupCache(t)
	if err := c.AckFallbackEntries(context.Background(), "click_events", nil); err != nil {
		t.Errorf("empty ack should be a no-op, got %v", err)
	}
}

func TestFlushCommit(t *testing.T) {
	srv, c := setupCache(t)
	ctx := context.Background()

	// Simulate the edge: cached record + click buffer
	u := &domain.URL{ShortCode: "abc", OriginalURL: "https://e.com"}
	if err := c.SetURL(ctx, u); err != nil {
		t.Fatalf("SetURL failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := c.IncrClickBuffer(ctx, "click_buffer", "abc", 300*time.Second); err != nil {
			t.Fatalf("incr failed: %v", err)
		}
	}

	if err := c.FlushCommit(ctx, "click_buffer", map[string]int64{"abc": 3}); err != nil {
		t.Fatalf("FlushCommit failed: %v", err)
	}

	// Buffer decremented by the flushed delta
	got, err := srv.Get("click_buffer:abc")
	if err != nil {
		t.Fatalf("buffer key missing: %v", err)
	}
	if got != "2" {
		t.Errorf("buffer after flush = %s, want 2", got)
	}

	// Cached record invalidated
	if c.GetURL(ctx, "abc") != nil {
		t.Error("url cache should be invalidated by flush")
	}
}

func TestFlushCommit_Empty(t *testing.T) {
	_, c := setupCache(t)
	if err := c.FlushCommit(context.Background(), "click_buffer", nil); err != nil {
		t.Errorf("empty flush should be a no-op, got %v", err)
	}
}
