package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	mailer  Mailer
	baseURL string
	logger  *slog.Logger
}

func NewProcessor(mailer Mailer, baseURL string, logger *slog.Logger) *Processor {
	return &Processor{mailer: mailer, baseURL: baseURL, logger: logger}
}

// Handler registers the notification task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(StatusChangedTask, p.handleStatusChanged)
	return mux
}

func (p *Processor) handleStatusChanged(ctx context.Context, task *asynq.Task) error {
	var payload StatusChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.Email == "" {
		return nil
	}

	msg := Render(payload, p.baseURL)
	if err := p.mailer.Send(msg); err != nil {
		p.logger.ErrorContext(ctx, "status email failed",
			"application_id", payload.ApplicationID,
			"status", payload.Status,
			"error", err,
		)
		return err
	}
	p.logger.InfoContext(ctx, "status email sent",
		"application_id", payload.ApplicationID,
		"status", payload.Status,
	)
	return nil
}
