// Package metrics содержит Prometheus метрики сервисов. Registry создаётся
// один раз в main и передаётся явно - глобальный registry не используется.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EdgeMetrics метрики edge сервиса
type EdgeMetrics struct {
	HTTPRequestsTotal *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	RedisOpsTotal    prometheus.Counter

	DBReadsTotal  prometheus.Counter
	DBWritesTotal prometheus.Counter

	KafkaPublishTotal   prometheus.Counter
	StreamFallbackTotal prometheus.Counter

	ShortenCollisionRetries prometheus.Counter
}

// NewEdgeMetrics регистрирует метрики edge в переданном registry
func NewEdgeMetrics(reg *prometheus.Registry, namespace string) *EdgeMetrics {
	factory := promauto.With(reg)

	return &EdgeMetrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by handler and status",
			},
			[]string{"handler", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"handler"},
		),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Redis cache hits on the redirect path",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Redis cache misses on the redirect path",
		}),
		RedisOpsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_ops_total",
			Help:      "Redis operations issued by the edge",
		}),
		DBReadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_reads_total",
			Help:      "PostgreSQL reads",
		}),
		DBWritesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_writes_total",
			Help:      "PostgreSQL writes",
		}),
		KafkaPublishTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Click events published to Kafka",
		}),
		StreamFallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_fallback_total",
			Help:      "Click events diverted to the Redis fallback stream",
		}),
		ShortenCollisionRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shorten_collision_retries_total",
			Help:      "Generated short code collisions retried on insert",
		}),
	}
}

// KeygenMetrics метрики keygen сервиса
type KeygenMetrics struct {
	AllocationsTotal *prometheus.CounterVec
	FailoversTotal   prometheus.Counter
	BackendHealth    *prometheus.GaugeVec
}

// NewKeygenMetrics регистрирует метрики keygen в переданном registry
func NewKeygenMetrics(reg *prometheus.Registry, namespace string) *KeygenMetrics {
	factory := promauto.With(reg)

	return &KeygenMetrics{
		AllocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "allocations_total",
				Help:      "ID block allocations by stack and backend",
			},
			[]string{"stack", "backend"},
		),
		FailoversTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Allocations served by the secondary backend",
		}),
		BackendHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_health",
				Help:      "Counter backend health (1=healthy, 0=unhealthy)",
			},
			[]string{"backend"},
		),
	}
}

// IngestorMetrics метрики ingestor сервиса
type IngestorMetrics struct {
	KafkaEventsTotal    prometheus.Counter
	FallbackDrainTotal  prometheus.Counter
	RedisBufferTotal    prometheus.Counter
	DBUpdatesTotal      prometheus.Counter
	ClickhouseRowsTotal prometheus.Counter
	FlushDuration       prometheus.Histogram
	FlushErrorsTotal    prometheus.Counter
}

// NewIngestorMetrics регистрирует метрики ingestor в переданном registry
func NewIngestorMetrics(reg *prometheus.Registry, namespace string) *IngestorMetrics {
	factory := promauto.With(reg)

	return &IngestorMetrics{
		KafkaEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_events_total",
			Help:      "Click events consumed from Kafka",
		}),
		FallbackDrainTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_drain_total",
			Help:      "Click events drained from the Redis fallback stream",
		}),
		RedisBufferTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_buffer_total",
			Help:      "Deltas buffered into the aggregation hash",
		}),
		DBUpdatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_updates_total",
			Help:      "Click count updates applied to PostgreSQL",
		}),
		ClickhouseRowsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clickhouse_rows_total",
			Help:      "Rows appended to ClickHouse",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Interval flush duration",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		FlushErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_errors_total",
			Help:      "Interval flushes that failed and will be retried",
		}),
	}
}

// Handler возвращает HTTP handler для /metrics над явным registry
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
