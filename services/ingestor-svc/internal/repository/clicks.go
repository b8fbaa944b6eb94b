// Package repository - запись агрегированных кликов в OLTP.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"shortlink/pkg/database"
	"shortlink/pkg/telemetry"
)

// PostgresClickRepository применяет дельты кликов к таблице urls
type PostgresClickRepository struct {
	db database.DB
}

// NewPostgresClickRepository создаёт новый репозиторий
func NewPostgresClickRepository(db database.DB) *PostgresClickRepository {
	return &PostgresClickRepository{db: db}
}

// FlushClicks применяет все дельты одной транзакцией. Либо коммитятся все
// UPDATE'ы, либо ни один: частичный flush невозможен.
func (r *PostgresClickRepository) FlushClicks(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "PostgresClickRepository.FlushClicks")
	defer span.End()

	query := `UPDATE urls SET clicks = clicks + $1, updated_at = now() WHERE short_code = $2`

	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		for code, delta := range deltas {
			if _, err := tx.Exec(ctx, query, delta, code); err != nil {
				return fmt.Errorf("failed to update clicks for %s: %w", code, err)
			}
		}
		return nil
	})

	if err != nil {
		telemetry.SetError(ctx, err)
		return err
	}
	return nil
}
