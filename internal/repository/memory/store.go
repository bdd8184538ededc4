// Package memory provides in-process repositories used when no database is
// configured and as fakes in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	seq        int64
	users      map[string]domain.User
	tickets    map[string]*ticketRow
	categories map[string]domain.Category
	prompt     *domain.PromptSetting
	history    []domain.TicketHistory
}

type ticketRow struct {
	seq    int64
	ticket domain.Ticket
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:        time.Now,
		users:      make(map[string]domain.User),
		tickets:    make(map[string]*ticketRow),
		categories: make(map[string]domain.Category),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSeededStore returns a store holding the default categories and system prompt.
func NewSeededStore(opts ...Option) *Store {
	s := NewStore(opts...)
	for i, name := range []string{"Technical", "Billing", "General", "Account", "Feature Request"} {
		s.AddCategory(domain.Category{Name: name, IsActive: true, Position: i + 1})
	}
	s.SetSystemPrompt(domain.DefaultSystemPrompt, true)
	return s
}

// AddCategory inserts c, filling in ID, slug and timestamps when empty.
func (s *Store) AddCategory(c domain.Category) domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Slug == "" {
		c.Slug = slug.Make(c.Name)
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.categories[c.ID] = c
	return c
}

// SetSystemPrompt replaces the system prompt setting.
func (s *Store) SetSystemPrompt(value string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.prompt = &domain.PromptSetting{
		ID:        uuid.NewString(),
		Key:       domain.SystemPromptKey,
		Value:     value,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return &ticketStore{s} }

// Categories returns the category repository view.
func (s *Store) Categories() repository.CategoryRepository { return &categoryStore{s} }

// Prompts returns the prompt setting repository view.
func (s *Store) Prompts() repository.PromptSettingRepository { return &promptStore{s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return &userStore{s} }

// History returns the ticket history repository view.
func (s *Store) History() repository.TicketHistoryRepository { return &historyStore{s} }

type ticketStore struct{ s *Store }

func (r *ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[ticket.UserID]; !ok {
		return fmt.Errorf("user %s does not exist", ticket.UserID)
	}
	s.seq++
	now := s.now()
	ticket.ID = uuid.NewString()
	ticket.IsStale = false
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	s.tickets[ticket.ID] = &ticketRow{seq: s.seq, ticket: *ticket}
	return nil
}

func (r *ticketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tickets[id]
	if !ok || row.ticket.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	return s.hydrate(row.ticket), nil
}

func (r *ticketStore) GetForUser(ctx context.Context, id, userID string) (*domain.Ticket, error) {
	ticket, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	return ticket, nil
}

func (r *ticketStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Ticket, int, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 15
	}
	if offset < 0 {
		offset = 0
	}

	rows := make([]*ticketRow, 0)
	for _, row := range s.tickets {
		if row.ticket.UserID == userID && row.ticket.DeletedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].ticket.CreatedAt, rows[j].ticket.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return rows[i].seq > rows[j].seq
	})

	total := len(rows)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	result := make([]domain.Ticket, 0, end-offset)
	for _, row := range rows[offset:end] {
		result = append(result, *s.hydrate(row.ticket))
	}
	return result, total, nil
}

func (r *ticketStore) UpdateFields(_ context.Context, id string, fields repository.TicketFields) (*domain.Ticket, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tickets[id]
	if !ok || row.ticket.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	updated := row.ticket
	for field, value := range fields {
		if err := applyField(&updated, field, value); err != nil {
			return nil, err
		}
	}
	if updated.CategoryID != nil {
		if _, ok := s.categories[*updated.CategoryID]; !ok {
			return nil, fmt.Errorf("category %s does not exist", *updated.CategoryID)
		}
	}
	updated.UpdatedAt = s.now()
	row.ticket = updated
	return s.hydrate(updated), nil
}

func (r *ticketStore) MarkStale(_ context.Context, updatedBefore time.Time) (int64, error) {
	return r.s.sweep(func(t *domain.Ticket) bool {
		if t.Status == domain.TicketStatusClosed || t.IsStale || !t.UpdatedAt.Before(updatedBefore) {
			return false
		}
		t.IsStale = true
		return true
	}), nil
}

func (r *ticketStore) SoftDeleteClosed(_ context.Context, updatedBefore time.Time) (int64, error) {
	now := r.s.now()
	return r.s.sweep(func(t *domain.Ticket) bool {
		if t.Status != domain.TicketStatusClosed || !t.UpdatedAt.Before(updatedBefore) {
			return false
		}
		t.DeletedAt = &now
		return true
	}), nil
}

func (r *ticketStore) FailStuckProcessing(_ context.Context, updatedBefore time.Time, message string) (int64, error) {
	now := r.s.now()
	return r.s.sweep(func(t *domain.Ticket) bool {
		if t.AiStatus != domain.AiStatusProcessing || !t.UpdatedAt.Before(updatedBefore) {
			return false
		}
		msg := message
		t.AiStatus = domain.AiStatusFailed
		t.AiError = &msg
		t.UpdatedAt = now
		return true
	}), nil
}

// sweep applies fn to every live ticket and counts the ones it changed.
func (s *Store) sweep(fn func(*domain.Ticket) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.tickets {
		if row.ticket.DeletedAt != nil {
			continue
		}
		if fn(&row.ticket) {
			n++
		}
	}
	return n
}

// hydrate copies t and resolves its category name. Caller holds the lock.
func (s *Store) hydrate(t domain.Ticket) *domain.Ticket {
	t.CategoryName = nil
	if t.CategoryID != nil {
		if c, ok := s.categories[*t.CategoryID]; ok {
			name := c.Name
			t.CategoryName = &name
		}
	}
	return &t
}

func applyField(t *domain.Ticket, field repository.TicketField, value any) error {
	var err error
	switch field {
	case repository.FieldStatus:
		var v *string
		if v, err = stringValue(value); err == nil && v != nil {
			t.Status = domain.TicketStatus(*v)
		}
	case repository.FieldIsStale:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("is_stale expects bool, got %T", value)
		}
		t.IsStale = b
	case repository.FieldCategoryID:
		t.CategoryID, err = stringValue(value)
	case repository.FieldSentiment:
		var v *string
		if v, err = stringValue(value); err == nil {
			t.Sentiment = nil
			if v != nil {
				s := domain.Sentiment(*v)
				t.Sentiment = &s
			}
		}
	case repository.FieldUrgency:
		var v *string
		if v, err = stringValue(value); err == nil {
			t.Urgency = nil
			if v != nil {
				u := domain.Urgency(*v)
				t.Urgency = &u
			}
		}
	case repository.FieldSuggestedReply:
		t.SuggestedReply, err = stringValue(value)
	case repository.FieldAiStatus:
		var v *string
		if v, err = stringValue(value); err == nil && v != nil {
			t.AiStatus = domain.AiStatus(*v)
		}
	case repository.FieldAiError:
		t.AiError, err = stringValue(value)
	default:
		return fmt.Errorf("ticket field %q is not updatable", field)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// stringValue normalizes the value shapes callers pass for text columns.
func stringValue(value any) (*string, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		s = v
	case *string:
		if v == nil {
			return nil, nil
		}
		s = *v
	case domain.TicketStatus:
		s = string(v)
	case domain.AiStatus:
		s = string(v)
	case domain.Sentiment:
		s = string(v)
	case *domain.Sentiment:
		if v == nil {
			return nil, nil
		}
		s = string(*v)
	case domain.Urgency:
		s = string(v)
	case *domain.Urgency:
		if v == nil {
			return nil, nil
		}
		s = string(*v)
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
	return &s, nil
}

type categoryStore struct{ s *Store }

func (r *categoryStore) ListActive(_ context.Context) ([]domain.Category, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.IsActive {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (r *categoryStore) ListActiveNames(ctx context.Context) ([]string, error) {
	categories, _ := r.ListActive(ctx)
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names, nil
}

func (r *categoryStore) FindActiveByNameOrSlug(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	categories, _ := r.ListActive(ctx)
	for _, c := range categories {
		if c.Name == name {
			return &c, nil
		}
	}
	key := slug.Make(name)
	for _, c := range categories {
		if c.Slug == key {
			return &c, nil
		}
	}
	return nil, nil
}

type promptStore struct{ s *Store }

func (r *promptStore) ActiveSystemPrompt(_ context.Context) (string, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prompt == nil || !s.prompt.IsActive {
		return "", nil
	}
	return s.prompt.Value, nil
}

type userStore struct{ s *Store }

func (r *userStore) Create(_ context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	now := s.now()
	user.ID = uuid.NewString()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return nil
}

func (r *userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type historyStore struct{ s *Store }

func (r *historyStore) Create(_ context.Context, history *domain.TicketHistory) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[history.TicketID]; !ok {
		return fmt.Errorf("ticket %s does not exist", history.TicketID)
	}
	history.ID = uuid.NewString()
	history.CreatedAt = s.now()
	s.history = append(s.history, *history)
	return nil
}

func (r *historyStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.TicketHistory
	for _, h := range s.history {
		if h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	return result, nil
}
