package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shortlink/pkg/database"
	"shortlink/pkg/domain"
	"shortlink/pkg/telemetry"
)

// uniqueViolation - SQLSTATE нарушения unique constraint
const uniqueViolation = "23505"

// PostgresURLRepository PostgreSQL реализация
type PostgresURLRepository struct {
	db database.DB
}

// NewPostgresURLRepository создаёт новый репозиторий
func NewPostgresURLRepository(db database.DB) *PostgresURLRepository {
	return &PostgresURLRepository{db: db}
}

func (r *PostgresURLRepository) Create(ctx context.Context, shortCode, originalURL string) (*domain.URL, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresURLRepository.Create")
	defer span.End()

	query := `
		INSERT INTO urls (short_code, original_url, clicks)
		VALUES ($1, $2, 0)
		RETURNING id, short_code, original_url, clicks, created_at, updated_at
	`

	u := &domain.URL{}
	err := r.db.QueryRow(ctx, query, shortCode, originalURL).Scan(
		&u.ID,
		&u.ShortCode,
		&u.OriginalURL,
		&u.Clicks,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateCode
		}
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to create url: %w", err)
	}

	return u, nil
}

func (r *PostgresURLRepository) GetByShortCode(ctx context.Context, shortCode string) (*domain.URL, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresURLRepository.GetByShortCode")
	defer span.End()

	query := `
		SELECT id, short_code, original_url, clicks, created_at, updated_at
		FROM urls
		WHERE short_code = $1
	`

	u := &domain.URL{}
	err := r.db.QueryRow(ctx, query, shortCode).Scan(
		&u.ID,
		&u.ShortCode,
		&u.OriginalURL,
		&u.Clicks,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		telemetry.SetError(ctx, err)
		return nil, fmt.Errorf("failed to get url: %w", err)
	}

	return u, nil
}

func (r *PostgresURLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresURLRepository.Exists")
	defer span.End()

	query := `SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, shortCode).Scan(&exists); err != nil {
		telemetry.SetError(ctx, err)
		return false, fmt.Errorf("failed to check short code: %w", err)
	}

	return exists, nil
}
