package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	"github.com/garyjia/forms-workflow/internal/infrastructure/persistence/sqlite"
)

const stepColumns = `a.id, a.submission_id, a.step_order, a.step_name, a.role, a.assigned_to,
	a.status, a.acted_by, a.acted_at, a.comments, a.created_at`

// ApprovalStepRepository implements port.ApprovalStepRepository
type ApprovalStepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalStepRepository creates a new approval step repository
func NewApprovalStepRepository(db *sql.DB, logger *zap.Logger) port.ApprovalStepRepository {
	return &ApprovalStepRepository{db: db, logger: logger}
}

// CreateBatch inserts the whole chain. Callers run it inside a transaction.
func (r *ApprovalStepRepository) CreateBatch(ctx context.Context, steps []*entity.ApprovalStep) error {
	query := `
		INSERT INTO approval_steps (
			id, submission_id, step_order, step_name, role, assigned_to,
			status, acted_by, acted_at, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	exec := sqlite.ExecutorFrom(ctx, r.db)

	for _, step := range steps {
		_, err := exec.ExecContext(ctx, query,
			step.ID,
			step.SubmissionID,
			step.StepOrder,
			step.StepName,
			nullString(step.Role),
			nullString(step.AssignedTo),
			step.Status,
			nullString(step.ActedBy),
			nullTime(step.ActedAt),
			nullString(step.Comments),
			step.CreatedAt.UTC(),
		)
		if err != nil {
			r.logger.Error("Failed to create approval step",
				zap.String("submission_id", step.SubmissionID),
				zap.String("step_name", step.StepName),
				zap.Error(err))
			return fmt.Errorf("failed to create approval step %s: %w", step.StepName, err)
		}
	}
	return nil
}

// GetByName returns a submission's step by name, or nil
func (r *ApprovalStepRepository) GetByName(ctx context.Context, submissionID, stepName string) (*entity.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps a WHERE a.submission_id = ? AND a.step_name = ?`

	step, err := scanStep(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, submissionID, stepName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval step",
			zap.String("submission_id", submissionID),
			zap.String("step_name", stepName),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval step: %w", err)
	}
	return step, nil
}

// GetBySubmissionID returns the chain in step order
func (r *ApprovalStepRepository) GetBySubmissionID(ctx context.Context, submissionID string) ([]*entity.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + `
		FROM approval_steps a
		WHERE a.submission_id = ?
		ORDER BY a.step_order ASC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, submissionID)
	if err != nil {
		r.logger.Error("Failed to list approval steps", zap.String("submission_id", submissionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	steps := []*entity.ApprovalStep{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Resolve moves a pending step to status; it reports false if the step was not pending
func (r *ApprovalStepRepository) Resolve(ctx context.Context, stepID, status, actedBy string, actedAt time.Time, comments string) (bool, error) {
	query := `
		UPDATE approval_steps
		SET status = ?, acted_by = ?, acted_at = ?, comments = ?
		WHERE id = ? AND status = 'pending'
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		status, actedBy, actedAt.UTC(), nullString(comments), stepID)
	if err != nil {
		r.logger.Error("Failed to resolve approval step",
			zap.String("step_id", stepID),
			zap.String("status", status),
			zap.Error(err))
		return false, fmt.Errorf("failed to resolve approval step: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListCurrentPending joins every in-progress submission with its current pending step
func (r *ApprovalStepRepository) ListCurrentPending(ctx context.Context) ([]*entity.ActionableStep, error) {
	query := `SELECT ` + submissionColumns + `, ` + stepColumns + `
		FROM submissions s
		JOIN approval_steps a ON a.submission_id = s.id AND a.step_name = s.current_step
		WHERE s.workflow_status = 'in_progress' AND a.status = 'pending'
		ORDER BY s.submitted_at DESC, s.id ASC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list pending steps", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending steps: %w", err)
	}
	defer rows.Close()

	items := []*entity.ActionableStep{}
	for rows.Next() {
		sub, step, err := scanJoined(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending step: %w", err)
		}
		items = append(items, &entity.ActionableStep{Submission: sub, Step: step})
	}
	return items, rows.Err()
}

// ListActedBy returns steps the actor resolved, most recent first
func (r *ApprovalStepRepository) ListActedBy(ctx context.Context, actor string) ([]*entity.CompletedStep, error) {
	query := `SELECT ` + submissionColumns + `, ` + stepColumns + `
		FROM approval_steps a
		JOIN submissions s ON s.id = a.submission_id
		WHERE a.acted_by = ? AND a.status IN ('approved', 'rejected')
		ORDER BY a.acted_at DESC, a.id ASC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, actor)
	if err != nil {
		r.logger.Error("Failed to list acted steps", zap.String("actor", actor), zap.Error(err))
		return nil, fmt.Errorf("failed to list acted steps: %w", err)
	}
	defer rows.Close()

	items := []*entity.CompletedStep{}
	for rows.Next() {
		sub, step, err := scanJoined(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan acted step: %w", err)
		}
		items = append(items, &entity.CompletedStep{Submission: sub, Step: step})
	}
	return items, rows.Err()
}

type stepFields struct {
	step       entity.ApprovalStep
	role       sql.NullString
	assignedTo sql.NullString
	actedBy    sql.NullString
	actedAt    sql.NullTime
	comments   sql.NullString
}

func (f *stepFields) dest() []interface{} {
	return []interface{}{
		&f.step.ID,
		&f.step.SubmissionID,
		&f.step.StepOrder,
		&f.step.StepName,
		&f.role,
		&f.assignedTo,
		&f.step.Status,
		&f.actedBy,
		&f.actedAt,
		&f.comments,
		&f.step.CreatedAt,
	}
}

func (f *stepFields) build() *entity.ApprovalStep {
	step := f.step
	step.Role = f.role.String
	step.AssignedTo = f.assignedTo.String
	step.ActedBy = f.actedBy.String
	step.ActedAt = timePtr(f.actedAt)
	step.Comments = f.comments.String
	step.CreatedAt = step.CreatedAt.UTC()
	return &step
}

func scanStep(row rowScanner) (*entity.ApprovalStep, error) {
	var f stepFields
	if err := row.Scan(f.dest()...); err != nil {
		return nil, err
	}
	return f.build(), nil
}

// scanJoined reads submissionColumns followed by stepColumns
func scanJoined(rows *sql.Rows) (*entity.Submission, *entity.ApprovalStep, error) {
	var (
		sf submissionFields
		af stepFields
	)
	if err := rows.Scan(append(sf.dest(), af.dest()...)...); err != nil {
		return nil, nil, err
	}
	sub, err := sf.build()
	if err != nil {
		return nil, nil, err
	}
	return sub, af.build(), nil
}

var _ port.ApprovalStepRepository = (*ApprovalStepRepository)(nil)
