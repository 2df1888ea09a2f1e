package port

import (
	"context"
	"time"

	"github.com/garyjia/forms-workflow/internal/domain/entity"
)

// SubmissionRepository defines persistence operations for Submission.
// Lookups return (nil, nil) when the row does not exist.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *entity.Submission) error
	GetByID(ctx context.Context, id string) (*entity.Submission, error)
	ListBySubmitter(ctx context.Context, submittedBy string) ([]*entity.Submission, error)

	// UpdateWorkflow writes status and current step only if the stored
	// current step still equals expectedStep. It reports whether a row changed.
	UpdateWorkflow(ctx context.Context, id, status, currentStep, expectedStep string) (bool, error)
}

// ApprovalStepRepository defines persistence operations for ApprovalStep
type ApprovalStepRepository interface {
	CreateBatch(ctx context.Context, steps []*entity.ApprovalStep) error
	GetByName(ctx context.Context, submissionID, stepName string) (*entity.ApprovalStep, error)
	GetBySubmissionID(ctx context.Context, submissionID string) ([]*entity.ApprovalStep, error)

	// Resolve moves a pending step to status. It reports false when the step
	// was no longer pending.
	Resolve(ctx context.Context, stepID, status, actedBy string, actedAt time.Time, comments string) (bool, error)

	// ListCurrentPending returns the current pending step of every in-progress
	// submission, newest submission first.
	ListCurrentPending(ctx context.Context) ([]*entity.ActionableStep, error)

	// ListActedBy returns steps resolved by actor, most recent decision first.
	ListActedBy(ctx context.Context, actor string) ([]*entity.CompletedStep, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit defers fn until the outermost transaction in ctx commits and
	// passes it the context the transaction was started with. fn is dropped on
	// rollback and runs immediately outside a transaction.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}
