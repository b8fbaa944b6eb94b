package main

import (
	"context"
	"embed"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/database"
	"shortlink/pkg/events"
	"shortlink/pkg/logger"
	"shortlink/pkg/metrics"
	"shortlink/pkg/server"
	"shortlink/pkg/telemetry"
	"shortlink/services/edge-svc/internal/allocator"
	"shortlink/services/edge-svc/internal/handlers"
	"shortlink/services/edge-svc/internal/middleware"
	"shortlink/services/edge-svc/internal/repository"
	"shortlink/services/edge-svc/internal/service"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadWithServiceDefaults("edge-svc", 8000)
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

	logger.Log.Info("Starting Edge Service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Телеметрия
	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "edge-svc",
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Fatal("Failed to init telemetry", "error", err)
	}
	defer tel.Shutdown(context.Background()) //nolint:errcheck

	// PostgreSQL + миграции под advisory lock (безопасный конкурентный старт
	// N реплик против свежей базы)
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Bootstrap(ctx, db.Pool(), &cfg.Database, migrations, "migrations"); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Redis: primary на запись, реплика на чтение (если настроена)
	primary, err := cache.NewRedisCache(&cache.Options{
		Addr:       cfg.Cache.Addr,
		Password:   cfg.Cache.Password,
		DB:         cfg.Cache.DB,
		PoolSize:   cfg.Cache.PoolSize,
		DefaultTTL: cfg.Cache.URLTTL,
	})
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}
	defer primary.Close()

	replica := primary
	if cfg.Cache.ReplicaAddr != "" {
		replica, err = cache.NewRedisCache(&cache.Options{
			Addr:       cfg.Cache.ReplicaAddr,
			Password:   cfg.Cache.Password,
			DB:         cfg.Cache.DB,
			PoolSize:   cfg.Cache.PoolSize,
			DefaultTTL: cfg.Cache.URLTTL,
		})
		if err != nil {
			logger.Fatal("Failed to connect to redis replica", "error", err)
		}
		defer replica.Close()
	}

	// Kafka producer
	producer, err := events.NewProducer(events.ProducerOptions{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.ClickTopic,
		PublishTimeout: cfg.Clicks.PublishTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to create kafka producer", "error", err)
	}
	defer producer.Close()

	// Метрики
	registry := prometheus.NewRegistry()
	edgeMetrics := metrics.NewEdgeMetrics(registry, cfg.Metrics.Namespace)

	// Собираем сервис
	repo := repository.NewPostgresURLRepository(db)
	ids := allocator.New(cfg.Keygen.ServiceURL, cfg.Keygen.Stack, cfg.Keygen.BlockSize)

	svc := service.New(repo, ids, primary, replica, producer, db, service.Config{
		BaseURL:         cfg.App.BaseURL,
		CodeLength:      cfg.ShortCode.Length,
		BufferKeyPrefix: cfg.Clicks.BufferKeyPrefix,
		BufferTTL:       cfg.Clicks.BufferTTL,
		StreamKey:       cfg.Clicks.StreamKey,
	}, edgeMetrics)

	handler := handlers.NewEdgeHandler(svc, edgeMetrics)

	mux := http.NewServeMux()
	handler.Routes(mux, registry)

	// Цепочка middleware
	var httpHandler http.Handler = mux
	httpHandler = middleware.Logging(httpHandler)
	httpHandler = middleware.RequestID(httpHandler)
	if cfg.HTTP.CORS.Enabled {
		httpHandler = middleware.CORS(cfg.HTTP.CORS)(httpHandler)
	}

	srv := server.New(&cfg.HTTP, "edge-svc", httpHandler)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}
}
