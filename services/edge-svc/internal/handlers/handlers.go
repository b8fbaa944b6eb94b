// Package handlers - HTTP обработчики edge сервиса.
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
	"shortlink/services/edge-svc/internal/middleware"
)

// Service - контракт бизнес-логики edge
type Service interface {
	Shorten(ctx context.Context, req *domain.ShortenRequest) (*domain.URLResponse, error)
	Redirect(ctx context.Context, code string) (*domain.URL, error)
	Stats(ctx context.Context, code string) (*domain.URLResponse, error)
	Health(ctx context.Context) *domain.EdgeHealth
}

// EdgeHandler обрабатывает HTTP API edge сервиса
type EdgeHandler struct {
	svc     Service
	metrics *metrics.EdgeMetrics
}

// NewEdgeHandler создаёт обработчики
func NewEdgeHandler(svc Service, m *metrics.EdgeMetrics) *EdgeHandler {
	return &EdgeHandler{svc: svc, metrics: m}
}

// Routes регистрирует маршруты. Литеральные пути (/health, /metrics,
// /api/...) имеют приоритет над wildcard /{short_code}.
func (h *EdgeHandler) Routes(mux *http.ServeMux, reg *prometheus.Registry) {
	mux.Handle("POST /api/shorten", middleware.Metrics(h.metrics, "shorten", http.HandlerFunc(h.Shorten)))
	mux.Handle("GET /api/stats/{short_code}", middleware.Metrics(h.metrics, "stats", http.HandlerFunc(h.Stats)))
	mux.Handle("GET /{short_code}", middleware.Metrics(h.metrics, "redirect", http.HandlerFunc(h.Redirect)))
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", metrics.Handler(reg))
}

// Shorten обрабатывает POST /api/shorten
func (h *EdgeHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req domain.ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.New(apperror.CodeInvalidArgument, "invalid request body"))
		return
	}

	resp, err := h.svc.Shorten(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Redirect обрабатывает GET /{short_code}
func (h *EdgeHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("short_code")

	u, err := h.svc.Redirect(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, u.OriginalURL, http.StatusTemporaryRedirect)
}

// Stats обрабатывает GET /api/stats/{short_code}
func (h *EdgeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("short_code")

	resp, err := h.svc.Stats(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health обрабатывает GET /health
func (h *EdgeHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.svc.Health(r.Context())

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
