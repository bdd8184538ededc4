package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-enrichment/internal/events"
	"github.com/spec-kit/ticket-enrichment/internal/queue"
	"github.com/spec-kit/ticket-enrichment/internal/service"
)

// RegisterEnqueuer enqueues exactly one enrichment task per created ticket.
// An enqueue error propagates to the publisher.
func RegisterEnqueuer(dispatcher events.Dispatcher, q TaskQueue, logger *zap.Logger) {
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, event events.Event) error {
		task := queue.NewTask(event.TicketID)
		if err := q.Enqueue(ctx, task); err != nil {
			return err
		}
		logger.Debug("enrichment task enqueued",
			zap.String("task_id", task.ID),
			zap.String("ticket_id", event.TicketID))
		return nil
	})
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
