// Package handlers - HTTP обработчики keygen сервиса.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"shortlink/pkg/apperror"
	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
	"shortlink/pkg/metrics"
)

// Allocator - контракт аллокатора для обработчиков
type Allocator interface {
	Allocate(ctx context.Context, size int64, stack domain.Stack) (*domain.AllocateResponse, error)
	Health(ctx context.Context) *domain.KeygenHealth
}

// KeygenHandler обрабатывает /allocate и /health
type KeygenHandler struct {
	allocator    Allocator
	defaultStack domain.Stack
}

// NewKeygenHandler создаёт обработчики
func NewKeygenHandler(alloc Allocator, defaultStack domain.Stack) *KeygenHandler {
	return &KeygenHandler{allocator: alloc, defaultStack: defaultStack}
}

// Routes регистрирует маршруты
func (h *KeygenHandler) Routes(mux *http.ServeMux, reg *prometheus.Registry) {
	mux.HandleFunc("POST /allocate", h.Allocate)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler(reg))
}

// Allocate обрабатывает POST /allocate
func (h *KeygenHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req domain.AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.New(apperror.CodeInvalidArgument, "invalid request body"))
		return
	}

	stack := h.defaultStack
	if req.Stack != "" {
		stack = domain.Stack(req.Stack)
	}

	resp, err := h.allocator.Allocate(r.Context(), req.Size, stack)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health обрабатывает GET /health
func (h *KeygenHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.allocator.Health(r.Context())

	status := http.StatusOK
	if health.Status != domain.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	detail := "internal error"
	if errors.As(err, &appErr) {
		detail = appErr.Message
	}
	writeJSON(w, apperror.Status(err), map[string]string{"detail": detail})
}
