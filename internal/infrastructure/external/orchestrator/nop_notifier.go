package orchestrator

import (
	"context"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
)

// NopNotifier is used when no orchestrator is configured
type NopNotifier struct{}

func (NopNotifier) NotifyStarted(context.Context, entity.ProcessStarted) {}
func (NopNotifier) HealthCheck(context.Context) bool                     { return false }
func (NopNotifier) Gateway() string                                      { return "" }

var _ port.ProcessNotifier = NopNotifier{}
