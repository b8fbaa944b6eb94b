// Package cache реализует слой горячего кэша поверх Redis: кэш URL записей,
// буферы кликов, fallback-стрим событий, агрегационный hash ingestor'а и
// счётчики аллокатора ID.
package cache

import (
	"errors"
	"fmt"
	"time"
)

// Стандартные ошибки
var (
	// ErrKeyNotFound возвращается, когда ключ отсутствует в кэше
	ErrKeyNotFound = errors.New("key not found")
)

// Options настройки подключения
type Options struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	DefaultTTL time.Duration
}

// DefaultOptions возвращает настройки по умолчанию
func DefaultOptions() *Options {
	return &Options{
		Addr:       "localhost:6379",
		PoolSize:   10,
		DefaultTTL: time.Hour,
	}
}

// URLKey - ключ кэшированной записи URL
func URLKey(shortCode string) string {
	return "url:" + shortCode
}

// ClickBufferKey - ключ счётчика незафлашенных кликов
func ClickBufferKey(prefix, shortCode string) string {
	return fmt.Sprintf("%s:%s", prefix, shortCode)
}

// AggHashKey - ключ агрегационного hash конкретного consumer'а
func AggHashKey(prefix, consumerName string) string {
	return fmt.Sprintf("%s:%s", prefix, consumerName)
}

// AllocatorKey - ключ счётчика аллокатора для стека писателей
func AllocatorKey(base, stack string) string {
	return fmt.Sprintf("%s:%s", base, stack)
}
