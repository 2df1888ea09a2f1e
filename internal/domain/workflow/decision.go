package workflow

import (
	"strings"

	"github.com/garyjia/forms-workflow/internal/domain/entity"
)

// Action names accepted on the wire
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Decision is the outcome an actor records on a step: Approve or Reject.
type Decision interface {
	// Action returns the wire name of the decision
	Action() string
	// Comments returns the free-text note stored on the step
	Comments() string
	// Trigger returns the submission trigger fired when the step is not the last one
	Trigger(isLastStep bool) Trigger
	// StepStatus returns the status written to the step
	StepStatus() string
	// Validate checks the decision's own invariants
	Validate() error
}

// Approve accepts the step. Comments are optional.
type Approve struct {
	Note string
}

// Reject refuses the step and ends the chain. A reason is mandatory.
type Reject struct {
	Reason string
}

func (Approve) Action() string      { return ActionApprove }
func (a Approve) Comments() string  { return a.Note }
func (Approve) StepStatus() string  { return entity.StepStatusApproved }
func (Approve) Validate() error     { return nil }
func (Reject) Action() string       { return ActionReject }
func (r Reject) Comments() string   { return r.Reason }
func (Reject) StepStatus() string   { return entity.StepStatusRejected }
func (Reject) Trigger(bool) Trigger { return TriggerReject }

func (Approve) Trigger(isLastStep bool) Trigger {
	if isLastStep {
		return TriggerApprove
	}
	return TriggerAdvance
}

func (r Reject) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return NewFieldError("comments", "comments are required when rejecting")
	}
	return nil
}

// ParseDecision builds a Decision from the wire action and comments
func ParseDecision(action, comments string) (Decision, error) {
	var d Decision
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionApprove:
		d = Approve{Note: comments}
	case ActionReject:
		d = Reject{Reason: comments}
	default:
		return nil, NewFieldError("action", "action must be approve or reject")
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
