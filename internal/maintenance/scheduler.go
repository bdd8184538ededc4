package maintenance

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/config"
)

// Scheduler runs the maintenance jobs on their configured cadence.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// NewScheduler registers the reaper on a fixed interval and the cleanup on a
// cron expression.
func NewScheduler(cfg config.MaintenanceConfig, reaper, cleanup BatchJob, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	m := &Scheduler{scheduler: s, logger: logger}

	if _, err := s.NewJob(
		gocron.DurationJob(cfg.ReaperInterval),
		gocron.NewTask(func() { m.run("stuck-processing-reaper", time.Minute, reaper) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("enrichment", "reaper"),
		gocron.WithName("stuck-processing-reaper"),
	); err != nil {
		return nil, err
	}

	if _, err := s.NewJob(
		gocron.CronJob(cfg.CleanupCron, false),
		gocron.NewTask(func() { m.run("ticket-cleanup", 10*time.Minute, cleanup) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("tickets", "cleanup"),
		gocron.WithName("ticket-cleanup"),
	); err != nil {
		return nil, err
	}

	logger.Info("registered maintenance jobs",
		zap.Duration("reaper_interval", cfg.ReaperInterval),
		zap.String("cleanup_cron", cfg.CleanupCron))
	return m, nil
}

// Start begins scheduling.
func (m *Scheduler) Start() {
	m.scheduler.Start()
}

// Shutdown stops scheduling and waits for running jobs.
func (m *Scheduler) Shutdown() error {
	return m.scheduler.Shutdown()
}

func (m *Scheduler) run(name string, timeout time.Duration, job BatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	count, err := job.Execute(ctx)
	if err != nil {
		m.logger.Error("maintenance job failed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	if count > 0 {
		m.logger.Info("maintenance job processed tickets",
			zap.String("job", name),
			zap.Int64("count", count),
			zap.Duration("duration", time.Since(start)))
		return
	}
	m.logger.Debug("maintenance job found nothing to do", zap.String("job", name))
}
