package workflow

import (
	"context"

	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

// WorkflowEngine owns the approval-step lifecycle of submissions
type WorkflowEngine interface {
	// SeedApprovalChain creates the ordered steps of a pending submission and
	// moves it to in_progress. The orchestrator is notified after commit.
	SeedApprovalChain(ctx context.Context, submissionID string, def entity.ProcessDefinition) error

	// ResolveActionableSteps returns the current pending steps the actor may act on,
	// newest submission first.
	ResolveActionableSteps(ctx context.Context, actor *entity.Actor) ([]*entity.ActionableStep, error)

	// CompleteStep records a decision on the current step and advances or
	// resolves the submission.
	CompleteStep(ctx context.Context, submissionID, stepName string, decision domainwf.Decision, actedBy string) (*StatusUpdate, error)
}

// StatusUpdate is the submission state after CompleteStep
type StatusUpdate struct {
	WorkflowStatus string `json:"workflow_status"`
	CurrentStep    string `json:"current_step,omitempty"`
}

// Resolved reports whether the chain reached a final decision
func (u *StatusUpdate) Resolved() bool {
	return domainwf.State(u.WorkflowStatus).IsResolved()
}
