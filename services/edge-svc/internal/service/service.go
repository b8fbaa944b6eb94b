// Package service - бизнес-логика edge: shorten, redirect, stats, health
// и асинхронный учёт кликов.
package service

import (
	"context"
	"errors"
	"time"

	"shortlink/pkg/apperror"
	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
	"shortlink/pkg/metrics"
	"shortlink/pkg/shortcode"
	"shortlink/services/edge-svc/internal/repository"
)

// Cache - операции горячего кэша, используемые edge'ом
type Cache interface {
	GetURL(ctx context.Context, shortCode string) *domain.URL
	SetURL(ctx context.Context, u *domain.URL) error
	IncrClickBuffer(ctx context.Context, prefix, shortCode string, ttl time.Duration) (int64, error)
	PushFallbackStream(ctx context.Context, streamKey, shortCode string, delta int64) error
	Ping(ctx context.Context) error
}

// Publisher публикует клики на шину событий
type Publisher interface {
	PublishClick(ctx context.Context, event *domain.ClickEvent) bool
}

// IDSource выдаёт следующий уникальный ID
type IDSource interface {
	NextID(ctx context.Context) (int64, error)
}

// DBHealth - проверка живости OLTP
type DBHealth interface {
	HealthCheck(ctx context.Context) error
}

// Config параметры edge сервиса
type Config struct {
	BaseURL         string
	CodeLength      int
	BufferKeyPrefix string
	BufferTTL       time.Duration
	StreamKey       string
	TrackTimeout    time.Duration
}

// EdgeService реализует операции edge
type EdgeService struct {
	repo     repository.URLRepository
	ids      IDSource
	primary  Cache // запись: SET, INCR, XADD
	replica  Cache // чтение в горячем пути редиректа
	producer Publisher
	dbHealth DBHealth
	cfg      Config
	metrics  *metrics.EdgeMetrics

	// spawn запускает click-track задачу; подменяется в тестах
	spawn func(func())
}

// New создаёт edge сервис
func New(
	repo repository.URLRepository,
	ids IDSource,
	primary, replica Cache,
	producer Publisher,
	dbHealth DBHealth,
	cfg Config,
	m *metrics.EdgeMetrics,
) *EdgeService {
	if cfg.TrackTimeout <= 0 {
		cfg.TrackTimeout = 5 * time.Second
	}
	return &EdgeService{
		repo:     repo,
		ids:      ids,
		primary:  primary,
		replica:  replica,
		producer: producer,
		dbHealth: dbHealth,
		cfg:      cfg,
		metrics:  m,
		spawn:    func(f func()) { go f() },
	}
}

// Shorten создаёт короткую ссылку
func (s *EdgeService) Shorten(ctx context.Context, req *domain.ShortenRequest) (*domain.URLResponse, error) {
	if req.URL == "" {
		return nil, apperror.New(apperror.CodeInvalidURL, "url is required")
	}

	isCustom := req.CustomCode != ""

	code, err := s.resolveShortCode(ctx, req)
	if err != nil {
		return nil, err
	}

	// Оптимистичная вставка: коллизии сгенерированных кодов статистически
	// невозможны при исправном аллокаторе, явный retry - защита от
	// операционных аномалий (ручная правка счётчика, провалы failover).
	u, err := s.repo.Create(ctx, code, req.URL)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to store url")
		}

		if isCustom {
			return nil, apperror.Newf(apperror.CodeCodeTaken, "Custom code '%s' is already taken", code)
		}

		logger.Log.Warn("Generated short code collided, retrying once", "short_code", code)
		s.metrics.ShortenCollisionRetries.Inc()

		u, err = s.retryGeneratedInsert(ctx, req.URL)
		if err != nil {
			return nil, err
		}
	}

	s.metrics.DBWritesTotal.Inc()

	// Запись в кэш после вставки - soft fail
	if err := s.primary.SetURL(ctx, u); err != nil {
		logger.Log.Warn("Cache set failed after shorten", "short_code", u.ShortCode, "error", err)
	}
	s.metrics.RedisOpsTotal.Inc()

	return domain.NewURLResponse(u, s.cfg.BaseURL), nil
}

// resolveShortCode выбирает код: пробует custom или генерирует из блока ID
func (s *EdgeService) resolveShortCode(ctx context.Context, req *domain.ShortenRequest) (string, error) {
	if req.CustomCode != "" {
		taken, err := s.repo.Exists(ctx, req.CustomCode)
		if err != nil {
			return "", apperror.Wrap(err, apperror.CodeInternal, "failed to check custom code")
		}
		if taken {
			return "", apperror.Newf(apperror.CodeCodeTaken, "Custom code '%s' is already taken", req.CustomCode)
		}
		return req.CustomCode, nil
	}

	return s.nextGeneratedCode(ctx)
}

// nextGeneratedCode берёт ID из блока и кодирует его в base62
func (s *EdgeService) nextGeneratedCode(ctx context.Context) (string, error) {
	id, err := s.ids.NextID(ctx)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeUnavailable, "ID allocator unavailable")
	}

	code, err := shortcode.Encode(id, s.cfg.CodeLength)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeEncoding, "failed to encode short code")
	}
	return code, nil
}

// retryGeneratedInsert повторяет вставку ровно один раз с новым ID
func (s *EdgeService) retryGeneratedInsert(ctx context.Context, originalURL string) (*domain.URL, error) {
	code, err := s.nextGeneratedCode(ctx)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.Create(ctx, code, originalURL)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to store url after retry")
	}
	return u, nil
}

// Redirect разрешает короткий код в оригинальный URL.
// Критическая секция: максимум одно чтение кэша и одно чтение OLTP;
// учёт клика уходит в фон и никогда не блокирует ответ.
func (s *EdgeService) Redirect(ctx context.Context, code string) (*domain.URL, error) {
	// 1. Читаем с реплики кэша
	if u := s.replica.GetURL(ctx, code); u != nil {
		s.metrics.CacheHitsTotal.Inc()
		s.metrics.RedisOpsTotal.Inc()
		s.scheduleTrack(code)
		return u, nil
	}

	s.metrics.CacheMissesTotal.Inc()
	s.metrics.RedisOpsTotal.Inc()

	// 2. Промах - идём в базу
	u, err := s.repo.GetByShortCode(ctx, code)
	s.metrics.DBReadsTotal.Inc()
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to resolve short code")
	}

	// 3. Прогреваем кэш для следующих читателей - soft fail
	if err := s.primary.SetURL(ctx, u); err != nil {
		logger.Log.Warn("Cache populate failed", "short_code", code, "error", err)
	}
	s.metrics.RedisOpsTotal.Inc()

	s.scheduleTrack(code)
	return u, nil
}

// Stats возвращает запись URL из OLTP, минуя кэш, чтобы не отдать
// устаревший clicks.
func (s *EdgeService) Stats(ctx context.Context, code string) (*domain.URLResponse, error) {
	u, err := s.repo.GetByShortCode(ctx, code)
	s.metrics.DBReadsTotal.Inc()
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to load stats")
	}

	return domain.NewURLResponse(u, s.cfg.BaseURL), nil
}

// Health проверяет OLTP (SELECT 1) и primary кэш (PING).
// Деградация любой зависимости делает сервис unhealthy целиком.
func (s *EdgeService) Health(ctx context.Context) *domain.EdgeHealth {
	h := &domain.EdgeHealth{Database: domain.Healthy, Cache: domain.Healthy}

	if err := s.dbHealth.HealthCheck(ctx); err != nil {
		h.Database = domain.Unhealthy
	}
	if err := s.primary.Ping(ctx); err != nil {
		h.Cache = domain.Unhealthy
	}

	h.Status = h.Overall()
	return h
}

// scheduleTrack запускает учёт клика в фоне (fire-and-forget)
func (s *EdgeService) scheduleTrack(code string) {
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TrackTimeout)
		defer cancel()
		s.TrackClick(ctx, code)
	})
}

// TrackClick учитывает один клик: инкремент буфера в кэше и публикация
// события на шину; при отказе шины событие уходит в fallback-стрим.
// Любая ошибка здесь не влияет на ответ пользователю.
func (s *EdgeService) TrackClick(ctx context.Context, code string) {
	if _, err := s.primary.IncrClickBuffer(ctx, s.cfg.BufferKeyPrefix, code, s.cfg.BufferTTL); err != nil {
		logger.Log.Warn("Click buffer incr failed", "short_code", code, "error", err)
	}
	s.metrics.RedisOpsTotal.Inc()

	event := &domain.ClickEvent{ShortCode: code, Delta: 1}
	if s.producer.PublishClick(ctx, event) {
		s.metrics.KafkaPublishTotal.Inc()
		return
	}

	s.metrics.StreamFallbackTotal.Inc()
	if err := s.primary.PushFallbackStream(ctx, s.cfg.StreamKey, code, 1); err != nil {
		logger.Log.Warn("Fallback stream push failed", "short_code", code, "error", err)
	}
}
