// Package allocator выдаёт блоки ID из двух независимых счётчиков Redis.
package allocator

import (
	"context"

	"shortlink/pkg/apperror"
	"shortlink/pkg/cache"
	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
	"shortlink/pkg/metrics"
)

// Counter - минимальный контракт backend'а счётчика
type Counter interface {
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Ping(ctx context.Context) error
}

// Allocator выдаёт блоки ID. Primary и secondary - НЕ реплики, а независимые
// счётчики: после failover secondary продолжает со своего значения, поэтому
// его блоки могут повторять ID, уже выданные primary, и монотонность не
// сохраняется. У каждого стека свой счётчик: внутри стека на одном backend'е
// блоки не пересекаются, а счётчики разных стеков начинаются с одного
// значения, так что их диапазоны могут совпадать.
type Allocator struct {
	primary      Counter
	secondary    Counter
	allocatorKey string
	defaultSize  int64
	metrics      *metrics.KeygenMetrics
}

// New создаёт аллокатор
func New(primary, secondary Counter, allocatorKey string, defaultSize int64, m *metrics.KeygenMetrics) *Allocator {
	return &Allocator{
		primary:      primary,
		secondary:    secondary,
		allocatorKey: allocatorKey,
		defaultSize:  defaultSize,
		metrics:      m,
	}
}

// Allocate атомарно резервирует блок из size ID для стека.
// INCRBY возвращает конец блока; start = end - size + 1.
// При отказе primary тот же INCRBY выполняется на secondary.
func (a *Allocator) Allocate(ctx context.Context, size int64, stack domain.Stack) (*domain.AllocateResponse, error) {
	if size == 0 {
		size = a.defaultSize
	}
	if size <= 0 {
		return nil, apperror.ErrInvalidSize
	}
	if !stack.Valid() {
		return nil, apperror.ErrUnknownStack
	}

	key := cache.AllocatorKey(a.allocatorKey, string(stack))

	end, err := a.primary.IncrBy(ctx, key, size)
	if err == nil {
		a.metrics.AllocationsTotal.WithLabelValues(string(stack), "primary").Inc()
		return &domain.AllocateResponse{Start: end - size + 1, End: end, Stack: string(stack)}, nil
	}

	logger.Log.Warn("Primary counter backend failed, trying secondary",
		"stack", stack,
		"error", err,
	)

	end, err2 := a.secondary.IncrBy(ctx, key, size)
	if err2 != nil {
		logger.Log.Error("Both counter backends failed",
			"stack", stack,
			"primary_error", err,
			"secondary_error", err2,
		)
		return nil, apperror.Wrap(err2, apperror.CodeUnavailable,
			"key allocation backends unavailable for stack: "+string(stack))
	}

	a.metrics.AllocationsTotal.WithLabelValues(string(stack), "secondary").Inc()
	a.metrics.FailoversTotal.Inc()
	return &domain.AllocateResponse{Start: end - size + 1, End: end, Stack: string(stack)}, nil
}

// Health опрашивает оба backend'а. Сервис жив, пока жив хотя бы один.
func (a *Allocator) Health(ctx context.Context) *domain.KeygenHealth {
	h := &domain.KeygenHealth{Primary: domain.Healthy, Secondary: domain.Healthy}

	if err := a.primary.Ping(ctx); err != nil {
		h.Primary = domain.Unhealthy
	}
	if err := a.secondary.Ping(ctx); err != nil {
		h.Secondary = domain.Unhealthy
	}

	a.setHealthGauge("primary", h.Primary)
	a.setHealthGauge("secondary", h.Secondary)

	h.Status = h.Overall()
	return h
}

func (a *Allocator) setHealthGauge(backend string, status domain.HealthStatus) {
	v := 0.0
	if status == domain.Healthy {
		v = 1.0
	}
	a.metrics.BackendHealth.WithLabelValues(backend).Set(v)
}
