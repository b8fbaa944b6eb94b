// Package worker - главный цикл ingestor'а: чтение шины событий, дренаж
// fallback-стрима, буферизация дельт в Redis и периодический flush
// в OLTP + аналитику.
package worker

import (
	"context"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
	"shortlink/pkg/metrics"
	"shortlink/services/ingestor-svc/internal/aggregate"
)

// Consumer - источник событий кликов
type Consumer interface {
	Poll(ctx context.Context, timeout time.Duration) ([]domain.ClickEvent, error)
}

// Cache - операции кэша, используемые ingestor'ом
type Cache interface {
	AggIncr(ctx context.Context, aggKey string, deltas map[string]int64) error
	AggSnapshot(ctx context.Context, aggKey string) (map[string]int64, error)
	AggClear(ctx context.Context, aggKey string) error
	FlushCommit(ctx context.Context, bufferPrefix string, deltas map[string]int64) error
	ReadFallbackStream(ctx context.Context, streamKey string, count int64) ([]cache.FallbackEntry, error)
	AckFallbackEntries(ctx context.Context, streamKey string, ids []string) error
}

// ClickStore применяет дельты к OLTP
type ClickStore interface {
	FlushClicks(ctx context.Context, deltas map[string]int64) error
}

// AnalyticsSink пишет строки в аналитическое хранилище
type AnalyticsSink interface {
	InsertClicks(ctx context.Context, deltas map[string]int64) (int, error)
}

// Config параметры worker'а
type Config struct {
	AggKeyPrefix    string
	ConsumerName    string
	BufferKeyPrefix string
	StreamKey       string
	BatchSize       int
	DrainBatch      int64
	PollTimeout     time.Duration
	FlushInterval   time.Duration
}

// Worker - однопоточный цикл агрегации. Весь mutable state принадлежит
// одной горутине; агрегационный hash в Redis принадлежит эксклюзивно
// этому consumer name.
type Worker struct {
	consumer  Consumer
	cache     Cache
	store     ClickStore
	analytics AnalyticsSink
	cfg       Config
	metrics   *metrics.IngestorMetrics

	aggKey    string
	pending   *aggregate.ClickAggregates
	lastFlush time.Time
}

// New создаёт worker
func New(consumer Consumer, c Cache, store ClickStore, analytics AnalyticsSink, cfg Config, m *metrics.IngestorMetrics) *Worker {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.DrainBatch <= 0 {
		cfg.DrainBatch = 500
	}

	return &Worker{
		consumer:  consumer,
		cache:     c,
		store:     store,
		analytics: analytics,
		cfg:       cfg,
		metrics:   m,
		aggKey:    cache.AggHashKey(cfg.AggKeyPrefix, cfg.ConsumerName),
		pending:   aggregate.New(),
	}
}

// Run крутит главный цикл до отмены контекста. Перед выходом остатки
// pending буферизуются и выполняется финальный flush.
func (w *Worker) Run(ctx context.Context) error {
	logger.Log.Info("Ingestion worker started",
		"consumer", w.cfg.ConsumerName,
		"flush_interval", w.cfg.FlushInterval,
	)

	w.lastFlush = time.Now()

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return ctx.Err()
		default:
		}

		w.Step(ctx)
	}
}

// Step выполняет одну итерацию цикла: poll, дренаж fallback, буферизация,
// interval flush. Вынесен отдельно для тестов.
func (w *Worker) Step(ctx context.Context) {
	// 1. Poll шины событий с таймаутом; таймаут - штатный путь к проверке
	// интервала flush'а
	events, err := w.consumer.Poll(ctx, w.cfg.PollTimeout)
	if err != nil {
		logger.Log.Warn("Kafka poll failed", "error", err)
	}
	for _, e := range events {
		w.pending.Add(e.ShortCode, e.Delta)
		w.metrics.KafkaEventsTotal.Inc()

		// Крупный батч не ждёт конца выдачи
		if w.pending.Len() >= w.cfg.BatchSize {
			w.bufferPending(ctx)
		}
	}

	// 2. Дренаж fallback-стрима: та же агрегационная семантика, второй
	// источник того же цикла
	w.drainFallback(ctx)

	// 3. Остатки pending уходят в агрегационный hash каждой итерацией:
	// и после полной выдачи, и после таймаута poll'а
	if !w.pending.IsEmpty() {
		w.bufferPending(ctx)
	}

	// 4. Interval flush
	if time.Since(w.lastFlush) >= w.cfg.FlushInterval {
		if err := w.Flush(ctx); err != nil {
			logger.Log.Warn("Flush failed, aggregates retained for retry", "error", err)
			w.metrics.FlushErrorsTotal.Inc()
		}
		w.lastFlush = time.Now()
	}
}

// drainFallback переливает события из fallback-стрима в агрегационный hash.
// XDEL выполняется строго после записи hash: падение между ними даёт
// повторную доставку, а не потерю.
func (w *Worker) drainFallback(ctx context.Context) {
	entries, err := w.cache.ReadFallbackStream(ctx, w.cfg.StreamKey, w.cfg.DrainBatch)
	if err != nil {
		logger.Log.Warn("Fallback stream read failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	deltas := make(map[string]int64)
	ids := make([]string, 0, len(entries))
	events := 0
	for _, e := range entries {
		ids = append(ids, e.ID)
		if e.ShortCode == "" {
			continue // битая запись, только подтверждаем
		}
		deltas[e.ShortCode] += e.Delta
		events++
	}

	if len(deltas) > 0 {
		if err := w.cache.AggIncr(ctx, w.aggKey, deltas); err != nil {
			logger.Log.Warn("Fallback aggregation failed", "error", err)
			return // записи останутся в стриме до следующей итерации
		}
		w.metrics.FallbackDrainTotal.Add(float64(events))
	}

	if err := w.cache.AckFallbackEntries(ctx, w.cfg.StreamKey, ids); err != nil {
		logger.Log.Warn("Fallback ack failed", "error", err)
	}
}

// bufferPending переносит in-memory pending в Redis hash
func (w *Worker) bufferPending(ctx context.Context) {
	deltas := w.pending.Snapshot()
	total := w.pending.Total()

	if err := w.cache.AggIncr(ctx, w.aggKey, deltas); err != nil {
		// pending не очищаем: дельты уйдут со следующей попыткой
		logger.Log.Warn("Redis buffer failed", "error", err)
		return
	}

	w.pending.Drain()
	w.metrics.RedisBufferTotal.Add(float64(total))
}

// Flush выполняет interval flush:
// (a) снимок агрегационного hash, неположительные дельты отброшены;
// (b) одна OLTP транзакция UPDATE clicks;
// (c) атомарный pipeline: декремент буферов + инвалидация url:<code>;
// (d) append в аналитику (некритично);
// (e) удаление hash.
// Ошибка OLTP оставляет hash на месте - точка повтора.
func (w *Worker) Flush(ctx context.Context) error {
	start := time.Now()

	deltas, err := w.cache.AggSnapshot(ctx, w.aggKey)
	if err != nil {
		return err
	}
	if len(deltas) == 0 {
		// Hash мог содержать только мусорные значения - подчищаем
		return w.cache.AggClear(ctx, w.aggKey)
	}

	// (b) OLTP: либо все дельты, либо ни одной
	if err := w.store.FlushClicks(ctx, deltas); err != nil {
		return err
	}
	w.metrics.DBUpdatesTotal.Add(float64(len(deltas)))

	// (c) Инвалидация строго после коммита: читатель после промаха увидит
	// уже новое значение clicks
	if err := w.cache.FlushCommit(ctx, w.cfg.BufferKeyPrefix, deltas); err != nil {
		logger.Log.Warn("Cache invalidation failed", "error", err)
	}

	// (d) Аналитика - soft fail
	if rows, err := w.analytics.InsertClicks(ctx, deltas); err != nil {
		logger.Log.Warn("Analytics insert failed", "error", err)
	} else {
		w.metrics.ClickhouseRowsTotal.Add(float64(rows))
	}

	// (e) Hash удаляется последним; падение до этой точки приводит к
	// повторному применению дельт (at-least-once, принятый overcount)
	if err := w.cache.AggClear(ctx, w.aggKey); err != nil {
		logger.Log.Warn("Agg hash delete failed", "error", err)
	}

	w.metrics.FlushDuration.Observe(time.Since(start).Seconds())
	logger.Log.Info("Flushed click aggregates",
		"codes", len(deltas),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// shutdown буферизует остатки и делает финальный flush
func (w *Worker) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !w.pending.IsEmpty() {
		w.bufferPending(ctx)
	}
	if err := w.Flush(ctx); err != nil {
		logger.Log.Warn("Final flush failed, aggregates retained in redis", "error", err)
	}
	logger.Log.Info("Ingestion worker stopped", "consumer", w.cfg.ConsumerName)
}
