package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
	"shortlink/pkg/metrics"
	"shortlink/pkg/server"
	"shortlink/services/keygen-svc/internal/allocator"
	"shortlink/services/keygen-svc/internal/handlers"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadWithServiceDefaults("keygen-svc", 8010)
	if err != nil {
		logger.Init("error")
		logger.Fatal("Failed to load config", "error", err)
	}

	// Инициализируем логгер
	logger.InitWithConfig(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	})

	logger.Log.Info("Starting Keygen Service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Два независимых counter backend'а. Ошибка подключения одного из них
	// не фатальна: сервис жив, пока жив хотя бы один.
	primary, err := cache.NewRedisCache(&cache.Options{
		Addr:     cfg.Keygen.PrimaryAddr,
		PoolSize: cfg.Cache.PoolSize,
	})
	if err != nil {
		logger.Log.Warn("Primary counter backend unavailable at startup", "error", err)
		primary = lazyCache(cfg.Keygen.PrimaryAddr, cfg.Cache.PoolSize)
	}
	defer primary.Close()

	secondary, err := cache.NewRedisCache(&cache.Options{
		Addr:     cfg.Keygen.SecondaryAddr,
		PoolSize: cfg.Cache.PoolSize,
	})
	if err != nil {
		logger.Log.Warn("Secondary counter backend unavailable at startup", "error", err)
		secondary = lazyCache(cfg.Keygen.SecondaryAddr, cfg.Cache.PoolSize)
	}
	defer secondary.Close()

	// Метрики: registry создаётся здесь и передаётся явно
	registry := prometheus.NewRegistry()
	keygenMetrics := metrics.NewKeygenMetrics(registry, cfg.Metrics.Namespace)

	alloc := allocator.New(primary, secondary, cfg.Keygen.AllocatorKey, cfg.Keygen.BlockSize, keygenMetrics)

	handler := handlers.NewKeygenHandler(alloc, domain.Stack(cfg.Keygen.Stack))

	mux := http.NewServeMux()
	handler.Routes(mux, registry)

	srv := server.New(&cfg.HTTP, "keygen-svc", mux)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}
}

// lazyCache создаёт клиент без стартового ping: backend может подняться
// позже, failover в аллокаторе переживёт его отсутствие.
func lazyCache(addr string, poolSize int) *cache.RedisCache {
	return cache.NewRedisCacheLazy(&cache.Options{Addr: addr, PoolSize: poolSize})
}
