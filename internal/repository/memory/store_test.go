package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-enrichment/internal/domain"
	"github.com/spec-kit/ticket-enrichment/internal/repository"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *fakeClock, domain.User) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewSeededStore(WithClock(clock.Now))
	user := domain.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(context.Background(), &user))
	return store, clock, user
}

func createTicket(t *testing.T, store *Store, userID, title string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		UserID:      userID,
		Title:       title,
		Description: "Something is not working at all",
		Status:      domain.TicketStatusOpen,
		AiStatus:    domain.AiStatusQueued,
	}
	require.NoError(t, store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func TestTicketStore_UpdateFieldsIsPartial(t *testing.T) {
	ctx := context.Background()
	store, _, user := newTestStore(t)
	ticket := createTicket(t, store, user.ID, "Broken")

	category, err := store.Categories().FindActiveByNameOrSlug(ctx, "Technical")
	require.NoError(t, err)
	require.NotNil(t, category)

	_, err = store.Tickets().UpdateFields(ctx, ticket.ID, repository.TicketFields{
		repository.FieldStatus: domain.TicketStatusInProgress,
	})
	require.NoError(t, err)

	reply := "We are on it."
	updated, err := store.Tickets().UpdateFields(ctx, ticket.ID, repository.TicketFields{
		repository.FieldAiStatus:       domain.AiStatusCompleted,
		repository.FieldCategoryID:     category.ID,
		repository.FieldSentiment:      domain.SentimentNegative,
		repository.FieldUrgency:        domain.UrgencyHigh,
		repository.FieldSuggestedReply: &reply,
		repository.FieldAiError:        nil,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Equal(t, domain.AiStatusCompleted, updated.AiStatus)
	require.NotNil(t, updated.CategoryName)
	assert.Equal(t, "Technical", *updated.CategoryName)
	assert.Equal(t, domain.SentimentNegative, *updated.Sentiment)
	assert.Equal(t, domain.UrgencyHigh, *updated.Urgency)
	assert.Equal(t, reply, *updated.SuggestedReply)
	assert.Nil(t, updated.AiError)
}

func TestTicketStore_UpdateFieldsRejectsUnknownColumn(t *testing.T) {
	store, _, user := newTestStore(t)
	ticket := createTicket(t, store, user.ID, "Broken")

	_, err := store.Tickets().UpdateFields(context.Background(), ticket.ID, repository.TicketFields{"title": "x"})
	assert.Error(t, err)
}

func TestTicketStore_ListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	store, clock, user := newTestStore(t)
	for _, title := range []string{"first", "second", "third"} {
		createTicket(t, store, user.ID, title)
		clock.Advance(time.Minute)
	}

	page, total, err := store.Tickets().ListByUser(ctx, user.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "third", page[0].Title)
	assert.Equal(t, "second", page[1].Title)

	page, _, err = store.Tickets().ListByUser(ctx, user.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Title)
}

func TestTicketStore_GetForUserHidesOtherUsers(t *testing.T) {
	ctx := context.Background()
	store, _, user := newTestStore(t)
	ticket := createTicket(t, store, user.ID, "Mine")

	_, err := store.Tickets().GetForUser(ctx, ticket.ID, "someone-else")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTicketStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock, user := newTestStore(t)
	open := createTicket(t, store, user.ID, "open")
	closed := createTicket(t, store, user.ID, "closed")
	_, err := store.Tickets().UpdateFields(ctx, closed.ID, repository.TicketFields{repository.FieldStatus: domain.TicketStatusClosed})
	require.NoError(t, err)

	clock.Advance(15 * 24 * time.Hour)

	stale, err := store.Tickets().MarkStale(ctx, clock.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stale)

	purged, err := store.Tickets().SoftDeleteClosed(ctx, clock.Now().Add(-14*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	got, err := store.Tickets().GetByID(ctx, open.ID)
	require.NoError(t, err)
	assert.True(t, got.IsStale)

	_, err = store.Tickets().GetByID(ctx, closed.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestTicketStore_FailStuckProcessing(t *testing.T) {
	ctx := context.Background()
	store, clock, user := newTestStore(t)
	ticket := createTicket(t, store, user.ID, "stuck")
	_, err := store.Tickets().UpdateFields(ctx, ticket.ID, repository.TicketFields{repository.FieldAiStatus: domain.AiStatusProcessing})
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	n, err := store.Tickets().FailStuckProcessing(ctx, clock.Now().Add(-10*time.Minute), "enrichment timed out")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AiStatusFailed, got.AiStatus)
	require.NotNil(t, got.AiError)
	assert.Equal(t, "enrichment timed out", *got.AiError)
}

func TestCategoryStore_FindActiveByNameOrSlug(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)
	store.AddCategory(domain.Category{Name: "Legacy", IsActive: false, Position: 9})

	c, err := store.Categories().FindActiveByNameOrSlug(ctx, "Feature Request")
	require.NoError(t, err)
	require.NotNil(t, c)

	c, err = store.Categories().FindActiveByNameOrSlug(ctx, "feature request")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Feature Request", c.Name)

	c, err = store.Categories().FindActiveByNameOrSlug(ctx, "Legacy")
	require.NoError(t, err)
	assert.Nil(t, c)

	names, err := store.Categories().ListActiveNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Technical", "Billing", "General", "Account", "Feature Request"}, names)
}

func TestUserStore_DuplicateEmail(t *testing.T) {
	store, _, _ := newTestStore(t)
	dup := domain.User{Name: "Ada 2", Email: "ADA@example.com", PasswordHash: "x"}
	assert.ErrorIs(t, store.Users().Create(context.Background(), &dup), repository.ErrDuplicate)
}
