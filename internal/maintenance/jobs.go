// Package maintenance holds the periodic housekeeping jobs for tickets.
package maintenance

import (
	"context"
	"fmt"
	"time"
)

// StuckProcessingMessage is recorded on tickets the reaper fails.
const StuckProcessingMessage = "enrichment timed out"

// BatchJob processes one batch and returns how many tickets it touched.
type BatchJob interface {
	Execute(ctx context.Context) (int64, error)
}

// TicketSweeper is the bulk ticket surface the jobs use.
type TicketSweeper interface {
	MarkStale(ctx context.Context, updatedBefore time.Time) (int64, error)
	SoftDeleteClosed(ctx context.Context, updatedBefore time.Time) (int64, error)
	FailStuckProcessing(ctx context.Context, updatedBefore time.Time, message string) (int64, error)
}

// StuckProcessingReaper fails tickets left in processing by a worker that
// died between the processing write and its final write.
type StuckProcessingReaper struct {
	tickets TicketSweeper
	timeout time.Duration
	now     func() time.Time
}

// NewStuckProcessingReaper builds the reaper.
func NewStuckProcessingReaper(tickets TicketSweeper, timeout time.Duration) *StuckProcessingReaper {
	return &StuckProcessingReaper{tickets: tickets, timeout: timeout, now: time.Now}
}

// Execute fails every ticket that has been processing longer than the timeout.
func (r *StuckProcessingReaper) Execute(ctx context.Context) (int64, error) {
	n, err := r.tickets.FailStuckProcessing(ctx, r.now().Add(-r.timeout), StuckProcessingMessage)
	if err != nil {
		return 0, fmt.Errorf("reap stuck tickets: %w", err)
	}
	return n, nil
}

// CleanupResult reports what one cleanup run changed.
type CleanupResult struct {
	MarkedStale int64
	Deleted     int64
}

// TicketCleanup flags idle tickets as stale and soft-deletes old closed ones.
type TicketCleanup struct {
	tickets    TicketSweeper
	staleAfter time.Duration
	purgeAfter time.Duration
	now        func() time.Time
}

// NewTicketCleanup builds the cleanup job.
func NewTicketCleanup(tickets TicketSweeper, staleAfter, purgeAfter time.Duration) *TicketCleanup {
	return &TicketCleanup{tickets: tickets, staleAfter: staleAfter, purgeAfter: purgeAfter, now: time.Now}
}

// Run performs both passes.
func (c *TicketCleanup) Run(ctx context.Context) (CleanupResult, error) {
	now := c.now()
	var result CleanupResult

	stale, err := c.tickets.MarkStale(ctx, now.Add(-c.staleAfter))
	if err != nil {
		return result, fmt.Errorf("mark stale tickets: %w", err)
	}
	result.MarkedStale = stale

	deleted, err := c.tickets.SoftDeleteClosed(ctx, now.Add(-c.purgeAfter))
	if err != nil {
		return result, fmt.Errorf("delete closed tickets: %w", err)
	}
	result.Deleted = deleted
	return result, nil
}

// Execute implements BatchJob.
func (c *TicketCleanup) Execute(ctx context.Context) (int64, error) {
	result, err := c.Run(ctx)
	return result.MarkedStale + result.Deleted, err
}
