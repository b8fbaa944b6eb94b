package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FallbackEntry - запись fallback-стрима кликов
type FallbackEntry struct {
	ID        string
	ShortCode string
	Delta     int64
}

// IncrClickBuffer инкрементирует буфер кликов короткого кода.
// TTL ставится только на первом инкременте.
func (c *RedisCache) IncrClickBuffer(ctx context.Context, prefix, shortCode string, ttl time.Duration) (int64, error) {
	key := ClickBufferKey(prefix, shortCode)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// PushFallbackStream добавляет событие клика в fallback-стрим.
// Используется edge'ом, когда шина событий недоступна.
func (c *RedisCache) PushFallbackStream(ctx context.Context, streamKey, shortCode string, delta int64) error {
	return c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{
			"short_code": shortCode,
			"delta":      strconv.FormatInt(delta, 10),
		},
	}).Err()
}

// ReadFallbackStream читает пачку записей fallback-стрима с начала.
// Записи не удаляются: вызывающий обязан подтвердить их AckFallbackEntries
// строго после того, как дельты записаны в агрегационный hash.
func (c *RedisCache) ReadFallbackStream(ctx context.Context, streamKey string, count int64) ([]FallbackEntry, error) {
	msgs, err := c.client.XRangeN(ctx, streamKey, "-", "+", count).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]FallbackEntry, 0, len(msgs))
	for _, m := range msgs {
		code, ok := m.Values["short_code"].(string)
		if !ok || code == "" {
			// Битая запись возвращается только с ID, чтобы вызывающий подтвердил
			// её вместе с пачкой, иначе она заблокирует дренаж
			entries = append(entries, FallbackEntry{ID: m.ID})
			continue
		}
		delta := int64(1)
		if raw, ok := m.Values["delta"].(string); ok {
			if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
				delta = parsed
			}
		}
		entries = append(entries, FallbackEntry{ID: m.ID, ShortCode: code, Delta: delta})
	}
	return entries, nil
}

// AckFallbackEntries удаляет обработанные записи из fallback-стрима
func (c *RedisCache) AckFallbackEntries(ctx context.Context, streamKey string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.client.XDel(ctx, streamKey, ids...).Err()
}

// FlushCommit выполняет шаг (c) interval flush одним атомарным pipeline:
// декремент буферов кликов на зафлашенные дельты и удаление кэшированных
// записей URL. Выполняется строго после коммита OLTP.
func (c *RedisCache) FlushCommit(ctx context.Context, bufferPrefix string, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for code, delta := range deltas {
		pipe.DecrBy(ctx, ClickBufferKey(bufferPrefix, code), delta)
		pipe.Del(ctx, URLKey(code))
	}
	_, err := pipe.Exec(ctx)
	return err
}
