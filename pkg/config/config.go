// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App        AppConfig        `koanf:"app"`
	HTTP       HTTPConfig       `koanf:"http"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Database   DatabaseConfig   `koanf:"database"`
	Cache      CacheConfig      `koanf:"cache"`
	Keygen     KeygenConfig     `koanf:"keygen"`
	ShortCode  ShortCodeConfig  `koanf:"short_code"`
	Clicks     ClicksConfig     `koanf:"clicks"`
	Kafka      KafkaConfig      `koanf:"kafka"`
	Ingestion  IngestionConfig  `koanf:"ingestion"`
	ClickHouse ClickHouseConfig `koanf:"clickhouse"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	BaseURL     string `koanf:"base_url"`    // для рендеринга short_url
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"` // отдельный listener (ingestor); edge/keygen отдают /metrics на основном порту
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DatabaseConfig - настройки PostgreSQL (OLTP)
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// CacheConfig - настройки горячего кэша (Redis)
type CacheConfig struct {
	Addr        string        `koanf:"addr"`         // primary (запись)
	ReplicaAddr string        `koanf:"replica_addr"` // read replica; пусто = primary
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	PoolSize    int           `koanf:"pool_size"`
	URLTTL      time.Duration `koanf:"url_ttl"` // TTL записи url:<code>
}

// KeygenConfig - настройки аллокатора ID
type KeygenConfig struct {
	PrimaryAddr   string `koanf:"primary_addr"`   // primary counter store
	SecondaryAddr string `koanf:"secondary_addr"` // независимый secondary counter store
	AllocatorKey  string `koanf:"allocator_key"`  // префикс ключа счётчика
	BlockSize     int64  `koanf:"block_size"`
	ServiceURL    string `koanf:"service_url"` // адрес keygen для edge
	Stack         string `koanf:"stack"`       // стек писателей этого edge
}

// ShortCodeConfig - настройки генерации коротких кодов
type ShortCodeConfig struct {
	Length int `koanf:"length"`
}

// ClicksConfig - настройки учёта кликов
type ClicksConfig struct {
	BufferKeyPrefix string        `koanf:"buffer_key_prefix"`
	BufferTTL       time.Duration `koanf:"buffer_ttl"`
	StreamKey       string        `koanf:"stream_key"` // fallback стрим в кэше
	PublishTimeout  time.Duration `koanf:"publish_timeout"`
}

// KafkaConfig - настройки шины событий
type KafkaConfig struct {
	Brokers       []string      `koanf:"brokers"`
	ClickTopic    string        `koanf:"click_topic"`
	ConsumerGroup string        `koanf:"consumer_group"`
	ConsumerName  string        `koanf:"consumer_name"`
	PollTimeout   time.Duration `koanf:"poll_timeout"`
}

// IngestionConfig - настройки агрегации кликов
type IngestionConfig struct {
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	AggKeyPrefix  string        `koanf:"agg_key_prefix"`
	DrainBatch    int64         `koanf:"drain_batch"` // размер пачки при дренаже fallback стрима
}

// ClickHouseConfig - настройки аналитического хранилища
type ClickHouseConfig struct {
	Addr     string `koanf:"addr"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.ShortCode.Length <= 0 || c.ShortCode.Length > 20 {
		errs = append(errs, fmt.Sprintf("short_code.length must be between 1 and 20, got %d", c.ShortCode.Length))
	}

	if c.Keygen.BlockSize <= 0 {
		errs = append(errs, fmt.Sprintf("keygen.block_size must be positive, got %d", c.Keygen.BlockSize))
	}

	if c.Ingestion.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("ingestion.batch_size must be positive, got %d", c.Ingestion.BatchSize))
	}

	if c.Ingestion.FlushInterval <= 0 {
		errs = append(errs, "ingestion.flush_interval must be positive")
	}

	if c.Kafka.ConsumerName == "" {
		errs = append(errs, "kafka.consumer_name is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
