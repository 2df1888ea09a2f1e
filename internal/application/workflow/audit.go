package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/dispatcher"
	"github.com/garyjia/forms-workflow/internal/domain/event"
)

// NewAuditHandler returns a dispatcher handler that writes each workflow event
// to the audit log.
func NewAuditHandler(logger *zap.Logger) dispatcher.Handler {
	audit := logger.Named("audit")
	return func(ctx context.Context, evt *event.Event) error {
		fields := []zap.Field{
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("submission_id", evt.SubmissionID),
			zap.String("actor", evt.Actor),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Time("occurred_at", evt.Timestamp),
		}
		for k, v := range evt.Payload {
			fields = append(fields, zap.Any(k, v))
		}

		if evt.Type.IsTerminal() {
			audit.Info("Submission resolved", fields...)
		} else {
			audit.Info("Workflow event", fields...)
		}
		return nil
	}
}
