package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"shortlink/pkg/analytics"
	"shortlink/pkg/cache"
	"shortlink/pkg/config"
	"shortlink/pkg/database"
	"shortlink/pkg/events"
	"shortlink/pkg/logger"
	"shortlink/pkg/metrics"
	"shortlink/pkg/server"
	"shortlink/pkg/telemetry"
	"shortlink/services/ingestor-svc/internal/repository"
	"shortlink/services/ingestor-svc/internal/worker"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadWithServiceDefaults("ingestor-svc", 8000)
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

	logger.Log.Info("Starting Ingestor Service",
		"version", cfg.App.Version,
		"consumer", cfg.Kafka.ConsumerName,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Телеметрия
	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "ingestor-svc",
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Fatal("Failed to init telemetry", "error", err)
	}
	defer tel.Shutdown(context.Background()) //nolint:errcheck

	// PostgreSQL
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	// Redis
	redisCache, err := cache.NewRedisCache(&cache.Options{
		Addr:       cfg.Cache.Addr,
		Password:   cfg.Cache.Password,
		DB:         cfg.Cache.DB,
		PoolSize:   cfg.Cache.PoolSize,
		DefaultTTL: cfg.Cache.URLTTL,
	})
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}
	defer redisCache.Close()

	// Kafka consumer
	consumer, err := events.NewConsumer(events.ConsumerOptions{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.ClickTopic,
		Group:        cfg.Kafka.ConsumerGroup,
		ConsumerName: cfg.Kafka.ConsumerName,
	})
	if err != nil {
		logger.Fatal("Failed to create kafka consumer", "error", err)
	}
	defer consumer.Close()

	// ClickHouse: недоступность аналитики не валит сервис
	sink, err := analytics.NewSink(ctx, analytics.Options{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
	})
	if err != nil {
		logger.Log.Warn("ClickHouse unavailable, analytics disabled until restart", "error", err)
		sink = nil
	} else {
		defer sink.Close()
		if err := sink.EnsureTable(ctx); err != nil {
			logger.Log.Warn("ClickHouse DDL failed", "error", err)
		}
	}

	// Метрики на отдельном listener'е
	registry := prometheus.NewRegistry()
	ingestorMetrics := metrics.NewIngestorMetrics(registry, cfg.Metrics.Namespace)

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler(registry))
		server.NewOnPort(cfg.Metrics.Port, "ingestor-metrics", mux).Start()
	}

	// Worker
	clickRepo := repository.NewPostgresClickRepository(db)

	w := worker.New(consumer, redisCache, clickRepo, analyticsOrNoop(sink), worker.Config{
		AggKeyPrefix:    cfg.Ingestion.AggKeyPrefix,
		ConsumerName:    cfg.Kafka.ConsumerName,
		BufferKeyPrefix: cfg.Clicks.BufferKeyPrefix,
		StreamKey:       cfg.Clicks.StreamKey,
		BatchSize:       cfg.Ingestion.BatchSize,
		DrainBatch:      cfg.Ingestion.DrainBatch,
		PollTimeout:     cfg.Kafka.PollTimeout,
		FlushInterval:   cfg.Ingestion.FlushInterval,
	}, ingestorMetrics)

	// Останавливаемся по сигналу
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		logger.Log.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Worker failed", "error", err)
	}
}

// noopSink заменяет аналитику, когда ClickHouse недоступен на старте
type noopSink struct{}

func (noopSink) InsertClicks(_ context.Context, _ map[string]int64) (int, error) {
	return 0, nil
}

func analyticsOrNoop(sink *analytics.Sink) worker.AnalyticsSink {
	if sink == nil {
		return noopSink{}
	}
	return sink
}
