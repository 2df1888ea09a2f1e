package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/application/workflow"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

// IntakeService records new submissions and starts their approval chains
type IntakeService interface {
	// CreateSubmission stores a submission for the form and, when the form has
	// workflow enabled and its condition holds, seeds the approval chain.
	CreateSubmission(ctx context.Context, formSlug, submittedBy string, payload map[string]interface{}) (*entity.Submission, error)

	// ListForms returns the configured forms
	ListForms() []*entity.FormConfig
}

type intakeServiceImpl struct {
	forms       port.FormCatalog
	submissions port.SubmissionRepository
	txManager   port.TransactionManager
	directory   port.Directory
	engine      workflow.WorkflowEngine
	conditions  port.ConditionEvaluator
	logger      Logger

	now   func() time.Time
	newID func() string
}

// NewIntakeService creates a new IntakeService
func NewIntakeService(
	forms port.FormCatalog,
	submissions port.SubmissionRepository,
	txManager port.TransactionManager,
	directory port.Directory,
	engine workflow.WorkflowEngine,
	conditions port.ConditionEvaluator,
	logger Logger,
) IntakeService {
	return &intakeServiceImpl{
		forms:       forms,
		submissions: submissions,
		txManager:   txManager,
		directory:   directory,
		engine:      engine,
		conditions:  conditions,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// CreateSubmission stores the submission and seeds its chain in one
// transaction. Nothing is stored when seeding fails.
func (s *intakeServiceImpl) CreateSubmission(ctx context.Context, formSlug, submittedBy string, payload map[string]interface{}) (*entity.Submission, error) {
	form, ok := s.forms.GetBySlug(formSlug)
	if !ok {
		return nil, fmt.Errorf("%w: form %s", domainwf.ErrNotFound, formSlug)
	}

	var submitter *entity.Actor
	if submittedBy == "" {
		if !form.AllowAnonymous || form.WorkflowEnabled {
			return nil, domainwf.NewFieldError("submitted_by", "this form requires a signed-in submitter")
		}
	} else {
		submitter, ok = s.directory.GetUserByIdentity(submittedBy)
		if !ok {
			return nil, fmt.Errorf("%w: submitter %s is not in the directory", domainwf.ErrNotFound, submittedBy)
		}
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}

	runWorkflow, err := s.workflowApplies(form, submitter, payload)
	if err != nil {
		return nil, err
	}

	sub := &entity.Submission{
		ID:             s.newID(),
		FormID:         form.ID,
		FormSlug:       form.Slug,
		Payload:        payload,
		SubmittedBy:    submittedBy,
		SubmittedAt:    s.now(),
		WorkflowStatus: entity.WorkflowStatusNone,
	}
	if runWorkflow {
		sub.WorkflowStatus = entity.WorkflowStatusPending
	}

	var stepErr error
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.submissions.Create(txCtx, sub); err != nil {
			s.logger.Error("Failed to create submission", "form_slug", form.Slug, "error", err)
			stepErr = domainwf.Unavailable("create submission", err)
			return stepErr
		}
		if !runWorkflow {
			return nil
		}
		if err := s.engine.SeedApprovalChain(txCtx, sub.ID, form.Process); err != nil {
			s.logger.Error("Failed to seed approval chain", "submission_id", sub.ID, "form_slug", form.Slug, "error", err)
			stepErr = err
			return err
		}
		return nil
	})
	if stepErr != nil {
		return nil, stepErr
	}
	if err != nil {
		return nil, domainwf.Unavailable("commit submission", err)
	}
	s.logger.Info("Submission created",
		"submission_id", sub.ID,
		"form_slug", form.Slug,
		"workflow_status", sub.WorkflowStatus)

	if !runWorkflow {
		return sub, nil
	}

	seeded, err := s.submissions.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, domainwf.Unavailable("reload submission", err)
	}
	if seeded == nil {
		return nil, fmt.Errorf("%w: submission %s", domainwf.ErrNotFound, sub.ID)
	}
	return seeded, nil
}

// ListForms returns the form catalog
func (s *intakeServiceImpl) ListForms() []*entity.FormConfig {
	return s.forms.List()
}

// workflowApplies evaluates the form condition against the payload and submitter
func (s *intakeServiceImpl) workflowApplies(form *entity.FormConfig, submitter *entity.Actor, payload map[string]interface{}) (bool, error) {
	if !form.WorkflowEnabled {
		return false, nil
	}
	if form.Condition == "" {
		return true, nil
	}
	if s.conditions == nil {
		return false, fmt.Errorf("form %s has a condition but no evaluator is configured", form.Slug)
	}

	env := map[string]interface{}{
		"payload":   payload,
		"form":      map[string]interface{}{"id": form.ID, "slug": form.Slug},
		"submitter": submitterEnv(submitter),
	}
	ok, err := s.conditions.Evaluate(form.Condition, env)
	if err != nil {
		return false, domainwf.NewFieldError("data", fmt.Sprintf("workflow condition failed: %v", err))
	}
	return ok, nil
}

func submitterEnv(a *entity.Actor) map[string]interface{} {
	if a == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"id":         a.ID,
		"name":       a.Name,
		"department": a.Department,
		"roles":      a.Roles,
	}
}
