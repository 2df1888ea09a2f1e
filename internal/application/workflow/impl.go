package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/dispatcher"
	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	"github.com/garyjia/forms-workflow/internal/domain/event"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

// NotifierHandlerName is the dispatcher handler that forwards seeded chains to the orchestrator
const NotifierHandlerName = "orchestrator_notifier"

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	submissions port.SubmissionRepository
	steps       port.ApprovalStepRepository
	txManager   port.TransactionManager
	directory   port.Directory
	notifier    port.ProcessNotifier

	dispatcher dispatcher.Dispatcher
	visibility domainwf.VisibilityRule
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher publishes domain events after each committed change
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for created_at and acted_at
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides step id generation
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = newID
	}
}

// WithVisibility replaces the inbox visibility rule
func WithVisibility(rule domainwf.VisibilityRule) EngineOption {
	return func(e *engineImpl) {
		e.visibility = rule
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	submissions port.SubmissionRepository,
	steps port.ApprovalStepRepository,
	txManager port.TransactionManager,
	directory port.Directory,
	notifier port.ProcessNotifier,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		submissions: submissions,
		steps:       steps,
		txManager:   txManager,
		directory:   directory,
		notifier:    notifier,
		visibility:  domainwf.DefaultVisibility,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.dispatcher != nil {
		e.dispatcher.Unsubscribe(event.TypeChainSeeded, NotifierHandlerName)
		e.dispatcher.Subscribe(event.TypeChainSeeded, NotifierHandlerName, e.notifyStarted)
	}

	return e
}

// SeedApprovalChain creates the ordered steps of a pending submission
func (e *engineImpl) SeedApprovalChain(ctx context.Context, submissionID string, def entity.ProcessDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}

	var seeded *entity.Submission
	var created []*entity.ApprovalStep

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		sub, err := e.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}

		current := domainwf.State(sub.WorkflowStatus)
		if current == domainwf.StateNone {
			return fmt.Errorf("%w: workflow is not enabled for submission %s", domainwf.ErrPrecondition, sub.ID)
		}
		machine, err := e.machineFor(sub)
		if err != nil {
			return err
		}
		if err := machine.Fire(txCtx, domainwf.TriggerSeed); err != nil {
			return fmt.Errorf("%w: submission %s cannot be seeded: %v", domainwf.ErrPrecondition, sub.ID, err)
		}

		steps, err := e.buildSteps(sub, def)
		if err != nil {
			return err
		}

		if err := e.steps.CreateBatch(txCtx, steps); err != nil {
			return domainwf.Unavailable("create approval steps", err)
		}

		first := steps[0].StepName
		ok, err := e.submissions.UpdateWorkflow(txCtx, sub.ID, machine.State().String(), first, "")
		if err != nil {
			return domainwf.Unavailable("update submission", err)
		}
		if !ok {
			return fmt.Errorf("%w: submission %s was seeded concurrently", domainwf.ErrPrecondition, sub.ID)
		}

		sub.WorkflowStatus = machine.State().String()
		sub.CurrentStep = first
		seeded, created = sub, steps
		return nil
	})
	if err != nil {
		return err
	}

	// an enclosing intake transaction may still roll back
	e.txManager.AfterCommit(ctx, func(ctx context.Context) {
		e.logger.Info("Approval chain seeded",
			zap.String("submission_id", seeded.ID),
			zap.String("form_slug", seeded.FormSlug),
			zap.Int("step_count", len(created)),
			zap.String("current_step", seeded.CurrentStep),
		)

		started := event.NewEvent(event.TypeChainSeeded, seeded.ID, seeded.SubmittedBy, map[string]interface{}{
			"form_slug":    seeded.FormSlug,
			"current_step": seeded.CurrentStep,
			"step_count":   len(created),
		})
		if e.dispatcher == nil {
			_ = e.notifyStarted(context.WithoutCancel(ctx), started)
			return
		}
		e.publish(ctx, started)
	})

	return nil
}

// notifyStarted forwards a seeded chain to the orchestrator.
// The notifier bounds and swallows its own failures.
func (e *engineImpl) notifyStarted(ctx context.Context, evt *event.Event) error {
	e.notifier.NotifyStarted(ctx, entity.ProcessStarted{
		SubmissionID: evt.SubmissionID,
		FormSlug:     evt.GetPayloadString("form_slug"),
		SubmittedBy:  evt.Actor,
	})
	return nil
}

// ResolveActionableSteps returns the current pending steps visible to actor
func (e *engineImpl) ResolveActionableSteps(ctx context.Context, actor *entity.Actor) ([]*entity.ActionableStep, error) {
	if actor == nil || actor.ID == "" {
		return []*entity.ActionableStep{}, nil
	}

	pending, err := e.steps.ListCurrentPending(ctx)
	if err != nil {
		return nil, domainwf.Unavailable("list pending steps", err)
	}

	visible := make([]*entity.ActionableStep, 0, len(pending))
	for _, item := range pending {
		if !item.Step.IsPending() || item.Submission.CurrentStep != item.Step.StepName {
			continue
		}
		if e.visibility.VisibleTo(item.Step, actor) {
			visible = append(visible, item)
		}
	}

	return visible, nil
}

// CompleteStep records decision on the current step of a submission
func (e *engineImpl) CompleteStep(ctx context.Context, submissionID, stepName string, decision domainwf.Decision, actedBy string) (*StatusUpdate, error) {
	if decision == nil {
		return nil, domainwf.NewFieldError("action", "action is required")
	}
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(actedBy) == "" {
		return nil, domainwf.NewFieldError("acted_by", "an authenticated actor is required")
	}

	var (
		update  *StatusUpdate
		sub     *entity.Submission
		trigger domainwf.Trigger
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		sub, err = e.loadSubmission(txCtx, submissionID)
		if err != nil {
			return err
		}

		step, err := e.steps.GetByName(txCtx, sub.ID, stepName)
		if err != nil {
			return domainwf.Unavailable("load approval step", err)
		}
		if step == nil {
			return fmt.Errorf("%w: step %q on submission %s", domainwf.ErrNotFound, stepName, sub.ID)
		}
		if !step.IsPending() {
			return fmt.Errorf("%w: step %q is already %s", domainwf.ErrPrecondition, stepName, step.Status)
		}
		if sub.CurrentStep != step.StepName {
			return fmt.Errorf("%w: step %q is not the current step", domainwf.ErrPrecondition, stepName)
		}

		chain, err := e.steps.GetBySubmissionID(txCtx, sub.ID)
		if err != nil {
			return domainwf.Unavailable("load approval chain", err)
		}
		next := nextStep(chain, step)

		machine, err := e.machineFor(sub)
		if err != nil {
			return err
		}
		trigger = decision.Trigger(next == nil)
		if err := machine.Fire(txCtx, trigger); err != nil {
			return fmt.Errorf("%w: %v", domainwf.ErrPrecondition, err)
		}

		ok, err := e.steps.Resolve(txCtx, step.ID, decision.StepStatus(), actedBy, e.now(), decision.Comments())
		if err != nil {
			return domainwf.Unavailable("resolve approval step", err)
		}
		if !ok {
			return fmt.Errorf("%w: step %q was completed concurrently", domainwf.ErrPrecondition, stepName)
		}

		newCurrent := ""
		if trigger == domainwf.TriggerAdvance {
			newCurrent = next.StepName
		}
		ok, err = e.submissions.UpdateWorkflow(txCtx, sub.ID, machine.State().String(), newCurrent, step.StepName)
		if err != nil {
			return domainwf.Unavailable("update submission", err)
		}
		if !ok {
			return fmt.Errorf("%w: submission %s changed concurrently", domainwf.ErrPrecondition, sub.ID)
		}

		update = &StatusUpdate{WorkflowStatus: machine.State().String(), CurrentStep: newCurrent}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval step completed",
		zap.String("submission_id", sub.ID),
		zap.String("step_name", stepName),
		zap.String("action", decision.Action()),
		zap.String("acted_by", actedBy),
		zap.String("workflow_status", update.WorkflowStatus),
		zap.String("current_step", update.CurrentStep),
	)

	e.publishCompletion(ctx, sub, stepName, decision, actedBy, update)

	return update, nil
}

func (e *engineImpl) loadSubmission(ctx context.Context, id string) (*entity.Submission, error) {
	sub, err := e.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, domainwf.Unavailable("load submission", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: submission %s", domainwf.ErrNotFound, id)
	}
	return sub, nil
}

func (e *engineImpl) machineFor(sub *entity.Submission) (domainwf.StateMachine, error) {
	state := domainwf.State(sub.WorkflowStatus)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: submission %s has unknown workflow status %q",
			domainwf.ErrInvalidState, sub.ID, sub.WorkflowStatus)
	}
	return BuildSubmissionStateMachine(state), nil
}

// buildSteps resolves assignment rules against the directory at seed time
func (e *engineImpl) buildSteps(sub *entity.Submission, def entity.ProcessDefinition) ([]*entity.ApprovalStep, error) {
	now := e.now()
	steps := make([]*entity.ApprovalStep, 0, len(def.Steps))

	for i, d := range def.Steps {
		step := &entity.ApprovalStep{
			ID:           e.newID(),
			SubmissionID: sub.ID,
			StepOrder:    i,
			StepName:     d.Name,
			Status:       entity.StepStatusPending,
			CreatedAt:    now,
		}

		switch d.Assign.Kind {
		case entity.AssignManager:
			if sub.IsAnonymous() {
				return nil, domainwf.NewFieldError("submitted_by", "manager assignment requires a known submitter")
			}
			if _, ok := e.directory.GetUserByIdentity(sub.SubmittedBy); !ok {
				return nil, fmt.Errorf("%w: submitter %s is not in the directory", domainwf.ErrNotFound, sub.SubmittedBy)
			}
			if manager, ok := e.directory.GetManagerOf(sub.SubmittedBy); ok {
				step.AssignedTo = manager.ID
			} else {
				e.logger.Warn("Submitter has no manager, falling back to manager role",
					zap.String("submission_id", sub.ID),
					zap.String("submitted_by", sub.SubmittedBy),
					zap.String("step_name", d.Name),
				)
				step.Role = entity.RoleManager
			}
		case entity.AssignUser:
			if _, ok := e.directory.GetUserByIdentity(d.Assign.User); !ok {
				return nil, fmt.Errorf("%w: assignee %s is not in the directory", domainwf.ErrNotFound, d.Assign.User)
			}
			step.AssignedTo = d.Assign.User
		case entity.AssignRole:
			step.Role = d.Assign.Role
		}

		steps = append(steps, step)
	}

	return steps, nil
}

func (e *engineImpl) publishCompletion(ctx context.Context, sub *entity.Submission, stepName string, decision domainwf.Decision, actedBy string, update *StatusUpdate) {
	stepType := event.TypeStepApproved
	if decision.Action() == domainwf.ActionReject {
		stepType = event.TypeStepRejected
	}

	stepEvt := event.NewEvent(stepType, sub.ID, actedBy, map[string]interface{}{
		"form_slug":       sub.FormSlug,
		"step_name":       stepName,
		"comments":        decision.Comments(),
		"workflow_status": update.WorkflowStatus,
		"current_step":    update.CurrentStep,
	})
	e.publish(ctx, stepEvt)

	if !update.Resolved() {
		return
	}

	finalType := event.TypeSubmissionApproved
	if update.WorkflowStatus == entity.WorkflowStatusRejected {
		finalType = event.TypeSubmissionRejected
	}
	e.publish(ctx, event.NewEventWithCorrelation(finalType, sub.ID, actedBy, map[string]interface{}{
		"form_slug":    sub.FormSlug,
		"submitted_by": sub.SubmittedBy,
		"final_step":   stepName,
	}, stepEvt.CorrelationID))
}

func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}

// nextStep returns the step following current in chain order, or nil
func nextStep(chain []*entity.ApprovalStep, current *entity.ApprovalStep) *entity.ApprovalStep {
	var next *entity.ApprovalStep
	for _, s := range chain {
		if s.StepOrder > current.StepOrder && (next == nil || s.StepOrder < next.StepOrder) {
			next = s
		}
	}
	return next
}

var _ WorkflowEngine = (*engineImpl)(nil)
