package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"shortlink/pkg/apperror"
	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
)

func init() {
	logger.Init("error")
}

// fakeAllocator реализует Allocator для тестов
type fakeAllocator struct {
	next   int64
	health *domain.KeygenHealth
	down   bool
}

func (f *fakeAllocator) Allocate(_ context.Context, size int64, stack domain.Stack) (*domain.AllocateResponse, error) {
	if size == 0 {
		size = 1000
	}
	if size < 0 {
		return nil, apperror.ErrInvalidSize
	}
	if !stack.Valid() {
		return nil, apperror.ErrUnknownStack
	}
	if f.down {
		return nil, apperror.Wrap(nil, apperror.CodeUnavailable,
			"key allocation backends unavailable for stack: "+string(stack))
	}
	f.next += size
	return &domain.AllocateResponse{Start: f.next - size + 1, End: f.next, Stack: string(stack)}, nil
}

func (f *fakeAllocator) Health(context.Context) *domain.KeygenHealth {
	if f.health != nil {
		return f.health
	}
	return &domain.KeygenHealth{Status: domain.Healthy, Primary: domain.Healthy, Secondary: domain.Healthy}
}

func newTestServer(alloc Allocator) *httptest.Server {
	h := NewKeygenHandler(alloc, domain.StackPrimaryWriters)
	mux := http.NewServeMux()
	h.Routes(mux, prometheus.NewRegistry())
	return httptest.NewServer(mux)
}

func TestAllocate_OK(t *testing.T) {
	srv := newTestServer(&fakeAllocator{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/allocate", "application/json",
		strings.NewReader(`{"size": 1000, "stack": "primary_writers"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var alloc domain.AllocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&alloc); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if alloc.End-alloc.Start != 999 {
		t.Errorf("got [%d, %d], want a 1000-wide block", alloc.Start, alloc.End)
	}
	if alloc.Stack != "primary_writers" {
		t.Errorf("stack = %q", alloc.Stack)
	}
}

func TestAllocate_DefaultsApplied(t *testing.T) {
	srv := newTestServer(&fakeAllocator{})
	defer srv.Close()

	// Пустое тело запроса: size и stack берутся из конфигурации
	resp, err := http.Post(srv.URL+"/allocate", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var alloc domain.AllocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&alloc); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if alloc.Stack != "primary_writers" {
		t.Errorf("default stack not applied: %q", alloc.Stack)
	}
}

func TestAllocate_InvalidSize(t *testing.T) {
	srv := newTestServer(&fakeAllocator{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/allocate", "application/json",
		strings.NewReader(`{"size": -1}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAllocate_UnknownStack(t *testing.T) {
	srv := newTestServer(&fakeAllocator{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/allocate", "application/json",
		strings.NewReader(`{"size": 10, "stack": "python"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["detail"] == "" {
		t.Error("error responses must carry a detail message")
	}
}

func TestAllocate_BothBackendsDown(t *testing.T) {
	srv := newTestServer(&fakeAllocator{down: true})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/allocate", "application/json",
		strings.NewReader(`{"size": 10}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestAllocate_InvalidBody(t *testing.T) {
	srv := newTestServer(&fakeAllocator{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/allocate", "application/json",
		strings.NewReader(`{broken`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHealth_Degraded(t *testing.T) {
	alloc := &fakeAllocator{health: &domain.KeygenHealth{
		Status:    domain.Healthy,
		Primary:   domain.Unhealthy,
		Secondary: domain.Healthy,
	}}
	srv := newTestServer(alloc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("one live backend should be 200, got %d", resp.StatusCode)
	}

	var h domain.KeygenHealth
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if h.Primary != domain.Unhealthy || h.Secondary != domain.Healthy {
		t.Errorf("per-backend detail lost: %+v", h)
	}
}

func TestHealth_AllDown(t *testing.T) {
	alloc := &fakeAllocator{health: &domain.KeygenHealth{
		Status:    domain.Unhealthy,
		Primary:   domain.Unhealthy,
		Secondary: domain.Unhealthy,
	}}
	srv := newTestServer(alloc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeAllocator{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
