package repository

import (
	"context"
	"errors"

	"shortlink/pkg/domain"
)

// Стандартные ошибки
var (
	ErrURLNotFound   = errors.New("url not found")
	ErrDuplicateCode = errors.New("short code already exists")
)

// URLRepository интерфейс репозитория URL записей
type URLRepository interface {
	// Create вставляет новую запись. Возвращает ErrDuplicateCode при
	// нарушении уникальности short_code.
	Create(ctx context.Context, shortCode, originalURL string) (*domain.URL, error)

	// GetByShortCode возвращает запись или ErrURLNotFound
	GetByShortCode(ctx context.Context, shortCode string) (*domain.URL, error)

	// Exists проверяет занятость кода (проба custom_code)
	Exists(ctx context.Context, shortCode string) (bool, error)
}
