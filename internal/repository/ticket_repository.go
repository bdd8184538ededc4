package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
)

// TicketField names a column the enrichment pipeline and API may change.
type TicketField string

const (
	FieldStatus         TicketField = "status"
	FieldIsStale        TicketField = "is_stale"
	FieldCategoryID     TicketField = "category_id"
	FieldSentiment      TicketField = "sentiment"
	FieldUrgency        TicketField = "urgency"
	FieldSuggestedReply TicketField = "suggested_reply"
	FieldAiStatus       TicketField = "ai_status"
	FieldAiError        TicketField = "ai_error"
)

var updatableTicketFields = map[TicketField]struct{}{
	FieldStatus:         {},
	FieldIsStale:        {},
	FieldCategoryID:     {},
	FieldSentiment:      {},
	FieldUrgency:        {},
	FieldSuggestedReply: {},
	FieldAiStatus:       {},
	FieldAiError:        {},
}

// TicketFields maps columns to new values. A nil value writes NULL.
type TicketFields map[TicketField]any

// Validate rejects columns outside the updatable set.
func (f TicketFields) Validate() error {
	if len(f) == 0 {
		return fmt.Errorf("no ticket fields to update")
	}
	for field := range f {
		if _, ok := updatableTicketFields[field]; !ok {
			return fmt.Errorf("ticket field %q is not updatable", field)
		}
	}
	return nil
}

// sortedFields returns the keys in a stable order so generated SQL is deterministic.
func (f TicketFields) sortedFields() []TicketField {
	keys := make([]TicketField, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetForUser(ctx context.Context, id, userID string) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, int, error)
	UpdateFields(ctx context.Context, id string, fields TicketFields) (*domain.Ticket, error)
	MarkStale(ctx context.Context, updatedBefore time.Time) (int64, error)
	SoftDeleteClosed(ctx context.Context, updatedBefore time.Time) (int64, error)
	FailStuckProcessing(ctx context.Context, updatedBefore time.Time, message string) (int64, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.user_id, t.category_id, c.name, t.title, t.description, t.status, t.is_stale,
       t.sentiment, t.urgency, t.suggested_reply, t.ai_status, t.ai_error, t.deleted_at, t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, title, description, status, ai_status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, is_stale, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.AiStatus,
	).Scan(&ticket.ID, &ticket.IsStale, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets t LEFT JOIN categories c ON c.id = t.category_id
        WHERE t.id=$1 AND t.deleted_at IS NULL`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetForUser(ctx context.Context, id, userID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets t LEFT JOIN categories c ON c.id = t.category_id
        WHERE t.id=$1 AND t.user_id=$2 AND t.deleted_at IS NULL`
	return scanTicket(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, int, error) {
	if limit <= 0 {
		limit = 15
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE user_id=$1 AND deleted_at IS NULL`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s
        FROM tickets t LEFT JOIN categories c ON c.id = t.category_id
        WHERE t.user_id=$1 AND t.deleted_at IS NULL
        ORDER BY t.created_at DESC, t.id DESC LIMIT %d OFFSET %d`, ticketColumns, limit, offset)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

// UpdateFields writes the given columns in a single statement and returns the
// fresh row. It does not read-modify-write, so concurrent updates to other
// columns are not lost.
func (r *ticketRepository) UpdateFields(ctx context.Context, id string, fields TicketFields) (*domain.Ticket, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	for _, field := range fields.sortedFields() {
		args = append(args, fields[field])
		sets = append(sets, fmt.Sprintf("%s=$%d", field, len(args)))
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
        WITH t AS (
            UPDATE tickets SET %s
            WHERE id=$%d AND deleted_at IS NULL
            RETURNING *
        )
        SELECT %s FROM t LEFT JOIN categories c ON c.id = t.category_id`,
		strings.Join(sets, ", "), len(args), ticketColumns)

	return scanTicket(r.pool.QueryRow(ctx, query, args...))
}

func (r *ticketRepository) MarkStale(ctx context.Context, updatedBefore time.Time) (int64, error) {
	const query = `
        UPDATE tickets SET is_stale=TRUE
        WHERE status <> 'closed' AND is_stale=FALSE AND updated_at < $1 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, updatedBefore)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketRepository) SoftDeleteClosed(ctx context.Context, updatedBefore time.Time) (int64, error) {
	const query = `
        UPDATE tickets SET deleted_at=NOW()
        WHERE status='closed' AND updated_at < $1 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, updatedBefore)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketRepository) FailStuckProcessing(ctx context.Context, updatedBefore time.Time, message string) (int64, error) {
	const query = `
        UPDATE tickets SET ai_status='failed', ai_error=$1, updated_at=NOW()
        WHERE ai_status='processing' AND updated_at < $2 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, message, updatedBefore)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.CategoryID,
		&ticket.CategoryName,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.IsStale,
		&ticket.Sentiment,
		&ticket.Urgency,
		&ticket.SuggestedReply,
		&ticket.AiStatus,
		&ticket.AiError,
		&ticket.DeletedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
