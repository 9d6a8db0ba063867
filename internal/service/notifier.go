package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/pkg/config"
	"github.com/noah-isme/campus-clearance-api/pkg/jobs"
)

// NotificationSink is the external delivery collaborator. Implementations are
// best-effort; a failing sink never affects the approval that emitted the event.
type NotificationSink interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// NotificationSinkFunc adapts a plain function into a sink.
type NotificationSinkFunc func(ctx context.Context, event models.NotificationEvent) error

// Notify implements NotificationSink.
func (f NotificationSinkFunc) Notify(ctx context.Context, event models.NotificationEvent) error {
	return f(ctx, event)
}

// LogSink records events in the application log. Used until a real delivery
// channel is wired in deployment.
func LogSink(logger *zap.Logger) NotificationSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NotificationSinkFunc(func(_ context.Context, event models.NotificationEvent) error {
		logger.Info("clearance notification",
			zap.String("recipient_id", event.RecipientID),
			zap.String("kind", string(event.Kind)),
			zap.Any("context", event.Context),
		)
		return nil
	})
}

// Notifier drains clearance events to the sink on a background worker pool so
// a slow sink cannot stall approvals.
type Notifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotifier builds the dispatcher around the configured worker pool.
func NewNotifier(sink NotificationSink, cfg config.NotificationsConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.NotificationEvent)
		if !ok {
			return fmt.Errorf("unexpected notification payload %T", job.Payload)
		}
		return sink.Notify(ctx, event)
	}
	queue := jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return &Notifier{queue: queue, logger: logger}
}

// Start launches the workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// Depth reports the number of events waiting for delivery.
func (n *Notifier) Depth() int {
	return n.queue.Depth()
}

// Emit enqueues events fire-and-forget. Enqueue failures are logged and
// swallowed so they never roll back the approval that produced them.
func (n *Notifier) Emit(events ...models.NotificationEvent) {
	for _, event := range events {
		if event.EmittedAt.IsZero() {
			event.EmittedAt = time.Now().UTC()
		}
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    string(event.Kind),
			Payload: event,
		}
		if err := n.queue.Enqueue(job); err != nil {
			n.logger.Warn("failed to enqueue notification",
				zap.String("kind", string(event.Kind)),
				zap.String("recipient_id", event.RecipientID),
				zap.Error(err),
			)
		}
	}
}
