package service

import (
	"context"
	"fmt"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/application/workflow"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// QueryService builds the read-side views of the approval workflow
type QueryService interface {
	// MyTasks returns the current steps the actor may act on. Unknown or empty
	// identities get an empty list.
	MyTasks(ctx context.Context, actorID string) ([]*Task, error)

	// MySubmissions returns the actor's submissions, newest first
	MySubmissions(ctx context.Context, actorID string) ([]*SubmissionSummary, error)

	// MyHistory returns the steps the actor resolved, most recent first
	MyHistory(ctx context.Context, actorID string) ([]*CompletedTask, error)

	// SubmissionDetail returns a submission and its ordered steps
	SubmissionDetail(ctx context.Context, submissionID string) (*SubmissionDetail, error)

	// Profile returns the actor with their manager and direct reports
	Profile(ctx context.Context, actorID string) (*Profile, error)
}

type queryServiceImpl struct {
	engine      workflow.WorkflowEngine
	submissions port.SubmissionRepository
	steps       port.ApprovalStepRepository
	directory   port.Directory
	forms       port.FormCatalog
	logger      Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	engine workflow.WorkflowEngine,
	submissions port.SubmissionRepository,
	steps port.ApprovalStepRepository,
	directory port.Directory,
	forms port.FormCatalog,
	logger Logger,
) QueryService {
	return &queryServiceImpl{
		engine:      engine,
		submissions: submissions,
		steps:       steps,
		directory:   directory,
		forms:       forms,
		logger:      logger,
	}
}

// MyTasks returns the actor's inbox
func (s *queryServiceImpl) MyTasks(ctx context.Context, actorID string) ([]*Task, error) {
	tasks := []*Task{}
	if actorID == "" {
		return tasks, nil
	}
	actor, ok := s.directory.GetUserByIdentity(actorID)
	if !ok {
		return tasks, nil
	}

	items, err := s.engine.ResolveActionableSteps(ctx, actor)
	if err != nil {
		s.logger.Error("Failed to resolve actionable steps", "actor", actorID, "error", err)
		return nil, err
	}

	for _, item := range items {
		sub, step := item.Submission, item.Step
		task := &Task{
			SubmissionID: sub.ID,
			FormID:       sub.FormID,
			FormSlug:     sub.FormSlug,
			FormTitle:    s.formTitle(sub),
			StepName:     step.StepName,
			StepOrder:    step.StepOrder,
			AssignedTo:   step.AssignedTo,
			Role:         step.Role,
			SubmittedBy:  sub.SubmittedBy,
			SubmittedAt:  sub.SubmittedAt,
			Payload:      sub.Payload,
		}
		if submitter, ok := s.directory.GetUserByIdentity(sub.SubmittedBy); ok {
			task.SubmitterName = submitter.Name
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// MySubmissions returns the actor's submissions annotated with their current step
func (s *queryServiceImpl) MySubmissions(ctx context.Context, actorID string) ([]*SubmissionSummary, error) {
	summaries := []*SubmissionSummary{}
	if actorID == "" {
		return summaries, nil
	}

	subs, err := s.submissions.ListBySubmitter(ctx, actorID)
	if err != nil {
		s.logger.Error("Failed to list submissions", "actor", actorID, "error", err)
		return nil, domainwf.Unavailable("list submissions", err)
	}

	for _, sub := range subs {
		summary := &SubmissionSummary{
			SubmissionID:   sub.ID,
			FormSlug:       sub.FormSlug,
			FormTitle:      s.formTitle(sub),
			WorkflowStatus: sub.WorkflowStatus,
			CurrentStep:    sub.CurrentStep,
			SubmittedAt:    sub.SubmittedAt,
		}
		if sub.CurrentStep != "" {
			step, err := s.steps.GetByName(ctx, sub.ID, sub.CurrentStep)
			if err != nil {
				return nil, domainwf.Unavailable("load current step", err)
			}
			if step != nil {
				summary.CurrentAssignee = step.AssignedTo
				summary.CurrentRole = step.Role
				summary.CurrentStepStatus = step.Status
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// MyHistory returns the steps resolved by the actor
func (s *queryServiceImpl) MyHistory(ctx context.Context, actorID string) ([]*CompletedTask, error) {
	history := []*CompletedTask{}
	if actorID == "" {
		return history, nil
	}

	items, err := s.steps.ListActedBy(ctx, actorID)
	if err != nil {
		s.logger.Error("Failed to list history", "actor", actorID, "error", err)
		return nil, domainwf.Unavailable("list acted steps", err)
	}

	for _, item := range items {
		sub, step := item.Submission, item.Step
		task := &CompletedTask{
			SubmissionID:   sub.ID,
			FormSlug:       sub.FormSlug,
			FormTitle:      s.formTitle(sub),
			StepName:       step.StepName,
			Status:         step.Status,
			Comments:       step.Comments,
			SubmittedBy:    sub.SubmittedBy,
			WorkflowStatus: sub.WorkflowStatus,
		}
		if step.ActedAt != nil {
			task.ActedAt = *step.ActedAt
		}
		history = append(history, task)
	}
	return history, nil
}

// SubmissionDetail returns a submission and its approval chain
func (s *queryServiceImpl) SubmissionDetail(ctx context.Context, submissionID string) (*SubmissionDetail, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return nil, domainwf.Unavailable("load submission", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: submission %s", domainwf.ErrNotFound, submissionID)
	}

	steps, err := s.steps.GetBySubmissionID(ctx, sub.ID)
	if err != nil {
		return nil, domainwf.Unavailable("load approval steps", err)
	}
	if steps == nil {
		steps = []*entity.ApprovalStep{}
	}

	return &SubmissionDetail{
		Submission: sub,
		FormTitle:  s.formTitle(sub),
		Steps:      steps,
	}, nil
}

// Profile returns the actor with manager and direct reports
func (s *queryServiceImpl) Profile(ctx context.Context, actorID string) (*Profile, error) {
	actor, ok := s.directory.GetUserByIdentity(actorID)
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domainwf.ErrNotFound, actorID)
	}

	profile := &Profile{
		Actor:         actor,
		DirectReports: s.directory.GetDirectReports(actor.ID),
	}
	if profile.DirectReports == nil {
		profile.DirectReports = []*entity.Actor{}
	}
	if manager, ok := s.directory.GetManagerOf(actor.ID); ok {
		profile.Manager = manager
	}
	return profile, nil
}

func (s *queryServiceImpl) formTitle(sub *entity.Submission) string {
	if form, ok := s.forms.GetByID(sub.FormID); ok {
		return form.Title
	}
	if form, ok := s.forms.GetBySlug(sub.FormSlug); ok {
		return form.Title
	}
	return sub.FormSlug
}
