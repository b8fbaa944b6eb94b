// Package analytics пишет агрегированные клики в ClickHouse.
// Хранилище append-only; строки упорядочены по (short_code, event_time).
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"shortlink/pkg/logger"
)

// Options настройки подключения к ClickHouse
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Sink - клиент аналитического хранилища
type Sink struct {
	conn     driver.Conn
	database string
}

// NewSink открывает соединение с ClickHouse
func NewSink(ctx context.Context, opts Options) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open failed: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}

	return &Sink{conn: conn, database: opts.Database}, nil
}

// EnsureTable создаёт таблицу кликов, если её нет. Идемпотентно.
func (s *Sink) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s.click_events
			(short_code String, delta UInt32, event_time DateTime)
		ENGINE = MergeTree ORDER BY (short_code, event_time)`,
		s.database,
	)
	return s.conn.Exec(ctx, ddl)
}

// InsertClicks добавляет по строке на каждую (code, delta) пару с
// event_time = now(). Возвращает количество вставленных строк.
func (s *Sink) InsertClicks(ctx context.Context, deltas map[string]int64) (int, error) {
	if len(deltas) == 0 {
		return 0, nil
	}

	batch, err := s.conn.PrepareBatch(ctx,
		fmt.Sprintf("INSERT INTO %s.click_events (short_code, delta, event_time)", s.database))
	if err != nil {
		return 0, fmt.Errorf("clickhouse prepare batch failed: %w", err)
	}

	now := time.Now().UTC()
	rows := 0
	for code, delta := range deltas {
		if delta <= 0 {
			continue
		}
		if err := batch.Append(code, uint32(delta), now); err != nil {
			return 0, fmt.Errorf("clickhouse append failed: %w", err)
		}
		rows++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("clickhouse insert failed: %w", err)
	}

	logger.Log.Debug("Analytics rows inserted", "rows", rows)
	return rows, nil
}

// Close закрывает соединение
func (s *Sink) Close() error {
	return s.conn.Close()
}
