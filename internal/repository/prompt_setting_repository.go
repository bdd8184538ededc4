package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

// PromptSettingRepository reads prompt configuration.
type PromptSettingRepository interface {
	// ActiveSystemPrompt returns the active system prompt, or "" if none is set.
	ActiveSystemPrompt(ctx context.Context) (string, error)
}

type promptSettingRepository struct {
	pool *pgxpool.Pool
}

// NewPromptSettingRepository returns a Postgres-backed implementation.
func NewPromptSettingRepository(pool *pgxpool.Pool) PromptSettingRepository {
	return &promptSettingRepository{pool: pool}
}

func (r *promptSettingRepository) ActiveSystemPrompt(ctx context.Context) (string, error) {
	const query = `SELECT value FROM prompt_settings WHERE key=$1 AND is_active LIMIT 1`
	var value string
	err := r.pool.QueryRow(ctx, query, domain.SystemPromptKey).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return value, err
}
