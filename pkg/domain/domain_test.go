package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewURLResponse(t *testing.T) {
	now := time.Now().UTC()
	u := &URL{
		ID:          42,
		ShortCode:   "0000abc",
		OriginalURL: "https://example.com/a",
		Clicks:      7,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	resp := NewURLResponse(u, "http://localhost:8000")
	if resp.ShortURL != "http://localhost:8000/0000abc" {
		t.Errorf("ShortURL = %q", resp.ShortURL)
	}
	if resp.ID != 42 || resp.Clicks != 7 {
		t.Errorf("unexpected response: %+v", resp)
	}

	// Trailing slash on base URL must not double up
	resp = NewURLResponse(u, "http://localhost:8000/")
	if resp.ShortURL != "http://localhost:8000/0000abc" {
		t.Errorf("ShortURL with trailing slash base = %q", resp.ShortURL)
	}
}

func TestURL_JSONFieldNames(t *testing.T) {
	u := &URL{ShortCode: "abc", OriginalURL: "https://e.com"}
	raw, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, field := range []string{"id", "short_code", "original_url", "clicks", "created_at", "updated_at"} {
		if _, ok := m[field]; !ok {
			t.Errorf("missing JSON field %q", field)
		}
	}
}

func TestClickEvent_JSON(t *testing.T) {
	raw := []byte(`{"short_code":"abc1234","delta":1}`)
	var e ClickEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if e.ShortCode != "abc1234" || e.Delta != 1 {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestStack_Valid(t *testing.T) {
	tests := []struct {
		stack Stack
		want  bool
	}{
		{StackPrimaryWriters, true},
		{StackSecondaryWriters, true},
		{Stack("python"), false},
		{Stack(""), false},
	}

	for _, tt := range tests {
		if got := tt.stack.Valid(); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.stack, got, tt.want)
		}
	}
}

func TestParseHealthStatus(t *testing.T) {
	if ParseHealthStatus("healthy") != Healthy {
		t.Error("healthy should parse")
	}
	if ParseHealthStatus("degraded") != Unhealthy {
		t.Error("unknown values should fall back to unhealthy")
	}
}

func TestEdgeHealth_Overall(t *testing.T) {
	tests := []struct {
		db, cache HealthStatus
		want      HealthStatus
	}{
		{Healthy, Healthy, Healthy},
		{Healthy, Unhealthy, Unhealthy},
		{Unhealthy, Healthy, Unhealthy},
		{Unhealthy, Unhealthy, Unhealthy},
	}

	for _, tt := range tests {
		h := &EdgeHealth{Database: tt.db, Cache: tt.cache}
		if got := h.Overall(); got != tt.want {
			t.Errorf("Overall(db=%s, cache=%s) = %s, want %s", tt.db, tt.cache, got, tt.want)
		}
	}
}

func TestKeygenHealth_Overall(t *testing.T) {
	tests := []struct {
		primary, secondary HealthStatus
		want               HealthStatus
	}{
		{Healthy, Healthy, Healthy},
		{Healthy, Unhealthy, Healthy},
		{Unhealthy, Healthy, Healthy},
		{Unhealthy, Unhealthy, Unhealthy},
	}

	for _, tt := range tests {
		h := &KeygenHealth{Primary: tt.primary, Secondary: tt.secondary}
		if got := h.Overall(); got != tt.want {
			t.Errorf("Overall(primary=%s, secondary=%s) = %s, want %s", tt.primary, tt.secondary, got, tt.want)
		}
	}
}
