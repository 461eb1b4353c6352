package notification

import (
	"context"

	"github.com/hibiken/asynq"

	"visaflow/internal/application/service"
)

// QueueNotifier enqueues status-change emails onto the task queue. It
// satisfies the workflow's Notifier dependency; the caller treats enqueue
// failures as log-and-continue.
type QueueNotifier struct {
	client *asynq.Client
}

func NewQueueNotifier(client *asynq.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (n *QueueNotifier) StatusChanged(ctx context.Context, ev service.StatusEvent) error {
	return EnqueueStatusChanged(ctx, n.client, StatusChangedPayload{
		ApplicationID: ev.ApplicationID.String(),
		Number:        ev.Number,
		Email:         ev.Email,
		Status:        string(ev.Status),
	})
}
