package cache

import (
	"context"
	"encoding/json"

	"shortlink/pkg/domain"
)

// GetURL читает запись URL из кэша. Возвращает nil при промахе И при любой
// ошибке (fail-open): горячий путь редиректа не должен падать из-за кэша.
func (c *RedisCache) GetURL(ctx context.Context, shortCode string) *domain.URL {
	raw, err := c.Get(ctx, URLKey(shortCode))
	if err != nil {
		return nil
	}

	var u domain.URL
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil
	}
	return &u
}

// SetURL кладёт запись URL в кэш с дефолтным TTL
func (c *RedisCache) SetURL(ctx context.Context, u *domain.URL) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.Set(ctx, URLKey(u.ShortCode), raw, c.defaultTTL)
}

// InvalidateURL удаляет кэшированную запись, заставляя следующего читателя
// перечитать свежие clicks из базы
func (c *RedisCache) InvalidateURL(ctx context.Context, shortCode string) error {
	return c.Delete(ctx, URLKey(shortCode))
}
