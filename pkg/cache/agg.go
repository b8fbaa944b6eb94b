package cache

import (
	"context"
	"strconv"
)

// AggIncr добавляет дельты в агрегационный hash одним pipeline.
// Hash переживает рестарты consumer'а между флашами.
func (c *RedisCache) AggIncr(ctx context.Context, aggKey string, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for code, delta := range deltas {
		pipe.HIncrBy(ctx, aggKey, code, delta)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// AggSnapshot читает весь агрегационный hash. Неположительные и нечисловые
// значения отбрасываются.
func (c *RedisCache) AggSnapshot(ctx context.Context, aggKey string) (map[string]int64, error) {
	raw, err := c.client.HGetAll(ctx, aggKey).Result()
	if err != nil {
		return nil, err
	}

	deltas := make(map[string]int64, len(raw))
	for code, v := range raw {
		delta, err := strconv.ParseInt(v, 10, 64)
		if err != nil || delta <= 0 {
			continue
		}
		deltas[code] = delta
	}
	return deltas, nil
}

// AggClear удаляет агрегационный hash. Вызывается после успешного коммита
// OLTP либо когда в hash нет положительных дельт: при падении до коммита
// hash остаётся и дельты применятся заново.
func (c *RedisCache) AggClear(ctx context.Context, aggKey string) error {
	return c.Delete(ctx, aggKey)
}
