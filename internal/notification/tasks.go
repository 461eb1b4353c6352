// Package notification delivers best-effort applicant emails on application
// status changes. The HTTP side only enqueues; a separate worker process
// renders and sends, so a slow or failing mail server never touches the
// request path.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// StatusChangedTask is scheduled after a committed status transition.
	StatusChangedTask = "notification:status_changed"
)

// StatusChangedPayload is serialized into the task so the worker can render
// the email without touching the application store.
type StatusChangedPayload struct {
	ApplicationID string `json:"application_id"`
	Number        string `json:"number"`
	Email         string `json:"email"`
	Status        string `json:"status"`
}

// EnqueueStatusChanged enqueues a status notification job.
func EnqueueStatusChanged(ctx context.Context, client *asynq.Client, payload StatusChangedPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(StatusChangedTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue status task: %w", err)
	}
	return nil
}
