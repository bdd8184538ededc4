package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

// CategoryRepository reads the category catalogue.
type CategoryRepository interface {
	ListActive(ctx context.Context) ([]domain.Category, error)
	ListActiveNames(ctx context.Context) ([]string, error)
	// FindActiveByNameOrSlug returns nil, nil when no active category matches.
	FindActiveByNameOrSlug(ctx context.Context, name string) (*domain.Category, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a Postgres-backed implementation.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

const categoryColumns = `id, name, slug, description, is_active, position, created_at, updated_at`

func (r *categoryRepository) ListActive(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE is_active ORDER BY position, name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *category)
	}
	return result, rows.Err()
}

func (r *categoryRepository) ListActiveNames(ctx context.Context) ([]string, error) {
	categories, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names, nil
}

func (r *categoryRepository) FindActiveByNameOrSlug(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	query := `SELECT ` + categoryColumns + ` FROM categories
        WHERE is_active AND (name=$1 OR slug=$2)
        ORDER BY (name=$1) DESC, position
        LIMIT 1`
	category, err := scanCategory(r.pool.QueryRow(ctx, query, name, slug.Make(name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return category, err
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.Description,
		&c.IsActive,
		&c.Position,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
