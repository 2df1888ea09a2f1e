package port

import (
	"context"

	"github.com/garyjia/forms-workflow/internal/domain/entity"
)

// ProcessNotifier tells the external orchestrator that an approval chain started.
// Implementations swallow and log their own failures.
type ProcessNotifier interface {
	NotifyStarted(ctx context.Context, msg entity.ProcessStarted)
	HealthCheck(ctx context.Context) bool
	Gateway() string
}

// Directory resolves actors, their managers and their reports
type Directory interface {
	GetUserByIdentity(id string) (*entity.Actor, bool)
	GetManagerOf(id string) (*entity.Actor, bool)
	GetDirectReports(managerID string) []*entity.Actor
}

// FormCatalog exposes configured forms
type FormCatalog interface {
	GetBySlug(slug string) (*entity.FormConfig, bool)
	GetByID(id string) (*entity.FormConfig, bool)
	List() []*entity.FormConfig
}

// ConditionEvaluator evaluates a boolean expression against env
type ConditionEvaluator interface {
	Evaluate(expression string, env map[string]interface{}) (bool, error)
}
