package allocator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
)

func init() {
	logger.Init("error")
}

// fakeKeygen - тестовый keygen сервис со счётчиком запросов
type fakeKeygen struct {
	counter  atomic.Int64
	requests atomic.Int64
	delay    time.Duration
	fail     atomic.Bool
}

func (f *fakeKeygen) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /allocate", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if f.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		var req domain.AllocateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		end := f.counter.Add(req.Size)
		resp := domain.AllocateResponse{Start: end - req.Size + 1, End: end, Stack: req.Stack}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func TestNextID_Sequential(t *testing.T) {
	keygen := &fakeKeygen{}
	srv := httptest.NewServer(keygen.handler())
	defer srv.Close()

	client := New(srv.URL, "primary_writers", 10)
	ctx := context.Background()

	for want := int64(1); want <= 25; want++ {
		id, err := client.NextID(ctx)
		if err != nil {
			t.Fatalf("NextID failed: %v", err)
		}
		if id != want {
			t.Fatalf("NextID = %d, want %d", id, want)
		}
	}

	// 25 IDs при блоке в 10 - ровно 3 запроса к keygen
	if got := keygen.requests.Load(); got != 3 {
		t.Errorf("keygen requests = %d, want 3", got)
	}
}

func TestNextID_CoalescesRefill(t *testing.T) {
	// Два конкурентных запроса с пустым блоком должны слиться в один
	// вызов /allocate.
	keygen := &fakeKeygen{delay: 50 * time.Millisecond}
	srv := httptest.NewServer(keygen.handler())
	defer srv.Close()

	client := New(srv.URL, "primary_writers", 100)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := client.NextID(ctx)
			if err != nil {
				t.Errorf("NextID failed: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	if got := keygen.requests.Load(); got != 1 {
		t.Errorf("concurrent refill must coalesce into 1 request, got %d", got)
	}

	seen := make(map[int64]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("id %d issued twice", id)
		}
		seen[id] = true
	}
}

func TestNextID_KeygenDown(t *testing.T) {
	keygen := &fakeKeygen{}
	keygen.fail.Store(true)
	srv := httptest.NewServer(keygen.handler())
	defer srv.Close()

	client := New(srv.URL, "primary_writers", 10)

	if _, err := client.NextID(context.Background()); err == nil {
		t.Error("expected error when keygen is down")
	}
}

func TestNextID_RecoversAfterOutage(t *testing.T) {
	keygen := &fakeKeygen{}
	srv := httptest.NewServer(keygen.handler())
	defer srv.Close()

	client := New(srv.URL, "primary_writers", 5)
	ctx := context.Background()

	keygen.fail.Store(true)
	if _, err := client.NextID(ctx); err == nil {
		t.Fatal("expected error during outage")
	}

	keygen.fail.Store(false)
	id, err := client.NextID(ctx)
	if err != nil {
		t.Fatalf("NextID after recovery failed: %v", err)
	}
	if id != 1 {
		t.Errorf("first id after recovery = %d, want 1", id)
	}
}

func TestNextID_UnreachableServer(t *testing.T) {
	client := New("http://127.0.0.1:1", "primary_writers", 10)
	if _, err := client.NextID(context.Background()); err == nil {
		t.Error("expected error for unreachable keygen")
	}
}
