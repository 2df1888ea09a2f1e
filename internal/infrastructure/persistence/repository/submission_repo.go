package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	"github.com/garyjia/forms-workflow/internal/infrastructure/persistence/sqlite"
)

const submissionColumns = `s.id, s.form_id, s.form_slug, s.payload, s.submitted_by,
	s.submitted_at, s.workflow_status, s.current_step`

// SubmissionRepository implements port.SubmissionRepository
type SubmissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sql.DB, logger *zap.Logger) port.SubmissionRepository {
	return &SubmissionRepository{db: db, logger: logger}
}

// Create inserts a submission
func (r *SubmissionRepository) Create(ctx context.Context, sub *entity.Submission) error {
	payload, err := json.Marshal(sub.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if sub.Payload == nil {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO submissions (
			id, form_id, form_slug, payload, submitted_by,
			submitted_at, workflow_status, current_step
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		sub.ID,
		sub.FormID,
		sub.FormSlug,
		string(payload),
		nullString(sub.SubmittedBy),
		sub.SubmittedAt.UTC(),
		sub.WorkflowStatus,
		nullString(sub.CurrentStep),
	)
	if err != nil {
		r.logger.Error("Failed to create submission",
			zap.String("submission_id", sub.ID),
			zap.String("form_slug", sub.FormSlug),
			zap.Error(err))
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetByID returns the submission or nil when it does not exist
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id = ?`

	sub, err := scanSubmission(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get submission", zap.String("submission_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// ListBySubmitter returns a submitter's submissions, newest first
func (r *SubmissionRepository) ListBySubmitter(ctx context.Context, submittedBy string) ([]*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + `
		FROM submissions s
		WHERE s.submitted_by = ?
		ORDER BY s.submitted_at DESC, s.id ASC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, submittedBy)
	if err != nil {
		r.logger.Error("Failed to list submissions", zap.String("submitted_by", submittedBy), zap.Error(err))
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := []*entity.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateWorkflow sets status and current step guarded by the expected current step
func (r *SubmissionRepository) UpdateWorkflow(ctx context.Context, id, status, currentStep, expectedStep string) (bool, error) {
	query := `
		UPDATE submissions
		SET workflow_status = ?, current_step = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND IFNULL(current_step, '') = ?
	`
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		status, nullString(currentStep), id, expectedStep)
	if err != nil {
		r.logger.Error("Failed to update submission workflow",
			zap.String("submission_id", id),
			zap.String("status", status),
			zap.Error(err))
		return false, fmt.Errorf("failed to update submission workflow: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

type submissionFields struct {
	sub         entity.Submission
	payload     string
	submittedBy sql.NullString
	currentStep sql.NullString
}

func (f *submissionFields) dest() []interface{} {
	return []interface{}{
		&f.sub.ID,
		&f.sub.FormID,
		&f.sub.FormSlug,
		&f.payload,
		&f.submittedBy,
		&f.sub.SubmittedAt,
		&f.sub.WorkflowStatus,
		&f.currentStep,
	}
}

func (f *submissionFields) build() (*entity.Submission, error) {
	sub := f.sub
	if err := json.Unmarshal([]byte(f.payload), &sub.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", sub.ID, err)
	}
	sub.SubmittedBy = f.submittedBy.String
	sub.CurrentStep = f.currentStep.String
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	return &sub, nil
}

func scanSubmission(row rowScanner) (*entity.Submission, error) {
	var f submissionFields
	if err := row.Scan(f.dest()...); err != nil {
		return nil, err
	}
	return f.build()
}

var _ port.SubmissionRepository = (*SubmissionRepository)(nil)
